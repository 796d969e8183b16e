package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
)

// FlagMarker marks items with open issues.
const FlagMarker = "!"

// QueueColumns are the columns of a lane listing.
func QueueColumns() []Column {
	return []Column{
		{Title: "#", Right: true},
		{Title: "ID", Right: true},
		{Title: "TITLE"},
		{Title: "CREATOR"},
		{Title: "READY"},
		{Title: "PROJECTED"},
		{Title: "IN"},
		{Title: "EARLY"},
		{Title: "CHANCE", Right: true},
		{Title: ""},
	}
}

// QueueRows builds the rows of a lane listing.
func QueueRows(q *domain.LaneQueue, now time.Time) [][]string {
	rows := make([][]string, 0, len(q.Pending))
	for i, it := range q.Pending {
		flag := ""
		if it.HasOpenIssue {
			flag = StyleRed.Render(FlagMarker)
		}
		ready := it.ReadyTime
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(it.ID, 10),
			Truncate(fmt.Sprintf("%s - %s", it.Artist, it.Title), 48),
			Truncate(it.Creator, 16),
			Clock(&ready),
			Clock(it.PromoteTime),
			RelativeStyled(it.PromoteTime, now),
			Clock(it.EarlyTime),
			Percent(it.Probability),
			flag,
		})
	}
	return rows
}

// FormatLane renders one lane's pending queue.
func FormatLane(q *domain.LaneQueue, now time.Time) string {
	var b strings.Builder
	title := fmt.Sprintf("%s (%d queued, %d recent)", q.Lane, len(q.Pending), len(q.History))
	b.WriteString(LaneStyle(q.Lane).Bold(true).Render(strings.ToUpper(title)))
	b.WriteString("\n")
	if len(q.Pending) == 0 {
		b.WriteString(Dim("  nothing queued"))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(RenderTable(QueueColumns(), QueueRows(q, now)))
	return b.String()
}

// FormatBoard renders the selected lanes, or all of them when lanes is empty.
func FormatBoard(b *domain.Board, now time.Time, lanes ...domain.Lane) string {
	if len(lanes) == 0 {
		for l := domain.Lane(0); l < domain.LaneCount; l++ {
			lanes = append(lanes, l)
		}
	}
	parts := make([]string, 0, len(lanes))
	for _, l := range lanes {
		if q := b.Lane(l); q != nil {
			parts = append(parts, FormatLane(q, now))
		}
	}
	return strings.Join(parts, "\n")
}

// PassSummary is the subset of a pass result worth printing.
type PassSummary struct {
	Events   int
	Cursor   int64
	Updated  []*domain.Item
	Removed  []int64
	Failures int
	Resynced bool
	WriteErr error
}

func FormatPass(s PassSummary) string {
	var b strings.Builder
	b.WriteString(Header("Pass"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  events    %d\n", s.Events)
	fmt.Fprintf(&b, "  cursor    %d\n", s.Cursor)
	fmt.Fprintf(&b, "  updated   %s\n", IDs(itemIDs(s.Updated)))
	fmt.Fprintf(&b, "  removed   %s\n", IDs(s.Removed))
	if s.Failures > 0 {
		fmt.Fprintf(&b, "  %s\n", StyleYellow.Render(fmt.Sprintf("%d events failed and were skipped", s.Failures)))
	}
	if s.Resynced {
		fmt.Fprintf(&b, "  %s\n", StyleBlue.Render("history resynced"))
	}
	if s.WriteErr != nil {
		fmt.Fprintf(&b, "  %s\n", StyleRed.Render("write failed: "+s.WriteErr.Error()))
	}
	return b.String()
}

// FormatChanged lists items whose projection changed.
func FormatChanged(items []*domain.Item, now time.Time, dryRun bool) string {
	verb := "updated"
	if dryRun {
		verb = "would change"
	}
	if len(items) == 0 {
		return Dim("no projections changed") + "\n"
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			strconv.FormatInt(it.ID, 10),
			LaneStyle(it.Lane).Render(it.Lane.String()),
			Clock(it.PromoteTime),
			RelativeStyled(it.PromoteTime, now),
			Percent(it.Probability),
		})
	}
	cols := []Column{{Title: "ID", Right: true}, {Title: "LANE"}, {Title: "PROJECTED"}, {Title: "IN"}, {Title: "CHANCE", Right: true}}
	return fmt.Sprintf("%d items %s\n%s", len(items), verb, RenderTable(cols, rows))
}

func itemIDs(items []*domain.Item) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
