package projection

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// rulesFile is the HCL shape of a rules override file. Every attribute is
// optional; absent attributes keep their default.
type rulesFile struct {
	RankPerDay           *int     `hcl:"rank_per_day,optional"`
	RankPerRun           *int     `hcl:"rank_per_run,optional"`
	Interval             *string  `hcl:"interval,optional"`
	DelayMin             *float64 `hcl:"delay_min,optional"`
	DelayMax             *float64 `hcl:"delay_max,optional"`
	Split                *float64 `hcl:"split,optional"`
	MinimumQueued        *string  `hcl:"minimum_queued,optional"`
	MinimumSinceReady    *string  `hcl:"minimum_since_ready,optional"`
	PenaltyCap           *string  `hcl:"penalty_cap,optional"`
	ResetPenaltyOnChange *bool    `hcl:"reset_penalty_on_change,optional"`
	ProbabilityDecimals  *int     `hcl:"probability_decimals,optional"`
}

// LoadRulesFile reads rules from an HCL file. An empty path yields the
// defaults.
func LoadRulesFile(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(path, src)
}

// ParseRules decodes HCL source over the defaults and validates the result.
// The filename must end in .hcl and is used in diagnostics.
func ParseRules(filename string, src []byte) (Rules, error) {
	var f rulesFile
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return Rules{}, fmt.Errorf("decoding rules: %w", err)
	}

	r := DefaultRules()
	setInt(&r.RankPerDay, f.RankPerDay)
	setInt(&r.RankPerRun, f.RankPerRun)
	setInt(&r.ProbabilityDecimals, f.ProbabilityDecimals)
	setFloat(&r.DelayMin, f.DelayMin)
	setFloat(&r.DelayMax, f.DelayMax)
	setFloat(&r.Split, f.Split)
	if f.ResetPenaltyOnChange != nil {
		r.ResetPenaltyOnChange = *f.ResetPenaltyOnChange
	}

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"interval", f.Interval, &r.Interval},
		{"minimum_queued", f.MinimumQueued, &r.MinimumQueued},
		{"minimum_since_ready", f.MinimumSinceReady, &r.MinimumSinceReady},
		{"penalty_cap", f.PenaltyCap, &r.PenaltyCap},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return Rules{}, fmt.Errorf("parsing %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("invalid rules: %w", err)
	}
	return r, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
