package osu

import (
	"fmt"
	"slices"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/projection"
)

type beatmapsetJSON struct {
	ID         int64         `json:"id"`
	Artist     string        `json:"artist"`
	Title      string        `json:"title"`
	Creator    string        `json:"creator"`
	UserID     int64         `json:"user_id"`
	RankedDate *string       `json:"ranked_date"`
	Status     string        `json:"status"`
	Beatmaps   []beatmapJSON `json:"beatmaps"`
}

type beatmapJSON struct {
	ID      int64 `json:"id"`
	ModeInt int   `json:"mode_int"`
}

type eventJSON struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	CreatedAt  string `json:"created_at"`
	UserID     int64  `json:"user_id"`
	Beatmapset *struct {
		ID int64 `json:"id"`
	} `json:"beatmapset"`
	Discussion *struct {
		BeatmapsetID int64 `json:"beatmapset_id"`
	} `json:"discussion"`
	Comment *struct {
		BeatmapIDs   []int64 `json:"beatmap_ids"`
		NominatorIDs []int64 `json:"nominator_ids"`
	} `json:"comment"`
}

type eventsPage struct {
	Events []eventJSON `json:"events"`
}

type searchPage struct {
	Beatmapsets []beatmapsetJSON `json:"beatmapsets"`
}

type discussionsPage struct {
	Beatmapsets []struct {
		ID int64 `json:"id"`
	} `json:"beatmapsets"`
}

func (e eventJSON) itemID() int64 {
	if e.Beatmapset != nil {
		return e.Beatmapset.ID
	}
	if e.Discussion != nil {
		return e.Discussion.BeatmapsetID
	}
	return 0
}

func (e eventJSON) toDomain() (domain.Event, bool, error) {
	var typ domain.EventType
	switch e.Type {
	case "qualify":
		typ = domain.EventEnterQueue
	case "disqualify":
		typ = domain.EventWithdraw
	case "rank":
		typ = domain.EventPromote
	default:
		return domain.Event{}, false, nil
	}
	ts, err := time.Parse(time.RFC3339, e.CreatedAt)
	if err != nil {
		return domain.Event{}, false, fmt.Errorf("parsing event %d time: %w", e.ID, err)
	}
	return domain.Event{ID: e.ID, ItemID: e.itemID(), Type: typ, Timestamp: ts.UTC()}, true, nil
}

func (e eventJSON) toRecord() (projection.LifecycleRecord, bool) {
	kinds := map[string]projection.RecordKind{
		"qualify":          projection.RecordEnter,
		"disqualify":       projection.RecordWithdraw,
		"rank":             projection.RecordPromote,
		"nominate":         projection.RecordApprove,
		"nomination_reset": projection.RecordApprovalReset,
	}
	kind, ok := kinds[e.Type]
	if !ok {
		return projection.LifecycleRecord{}, false
	}
	at, err := time.Parse(time.RFC3339, e.CreatedAt)
	if err != nil {
		return projection.LifecycleRecord{}, false
	}
	rec := projection.LifecycleRecord{Kind: kind, At: at.UTC(), ActorID: e.UserID}
	if e.Comment != nil {
		rec.Approvers = e.Comment.NominatorIDs
		rec.Targets = e.Comment.BeatmapIDs
	}
	return rec, true
}

// lane is the lowest mode among the set's beatmaps.
func (b beatmapsetJSON) lane() domain.Lane {
	if len(b.Beatmaps) == 0 {
		return domain.LaneStandard
	}
	m := b.Beatmaps[0].ModeInt
	for _, bm := range b.Beatmaps[1:] {
		m = min(m, bm.ModeInt)
	}
	return domain.Lane(m)
}

func (b beatmapsetJSON) beatmapIDs() []int64 {
	ids := make([]int64, 0, len(b.Beatmaps))
	for _, bm := range b.Beatmaps {
		ids = append(ids, bm.ID)
	}
	slices.Sort(ids)
	return ids
}

func (b beatmapsetJSON) rankedDate() (time.Time, error) {
	if b.RankedDate == nil || *b.RankedDate == "" {
		return time.Time{}, fmt.Errorf("beatmapset %d has no ranked_date", b.ID)
	}
	t, err := time.Parse(time.RFC3339, *b.RankedDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing beatmapset %d ranked_date: %w", b.ID, err)
	}
	return t.UTC(), nil
}

// baseItem maps shared fields. For a qualified set ranked_date is the
// instant it last entered the queue; for a ranked set it is the promotion.
func (b beatmapsetJSON) baseItem() (*domain.Item, time.Time, error) {
	at, err := b.rankedDate()
	if err != nil {
		return nil, time.Time{}, err
	}
	lane := b.lane()
	if !lane.Valid() {
		return nil, time.Time{}, fmt.Errorf("beatmapset %d has unknown mode %d", b.ID, lane)
	}
	return &domain.Item{
		ID:        b.ID,
		Lane:      lane,
		Title:     b.Title,
		Artist:    b.Artist,
		Creator:   b.Creator,
		CreatorID: b.UserID,
	}, at, nil
}

func (b beatmapsetJSON) promotedItem() (*domain.Item, error) {
	it, at, err := b.baseItem()
	if err != nil {
		return nil, err
	}
	it.MarkPromoted(at)
	return it, nil
}
