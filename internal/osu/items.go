package osu

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/projection"
)

const searchPageSize = 50

var lifecycleTypes = []string{"qualify", "disqualify", "rank", "nominate", "nomination_reset"}

// Item fetches one beatmapset. A ranked set comes back promoted; anything
// else comes back pending with its readiness derived from its lifecycle.
func (c *Client) Item(ctx context.Context, id int64) (*domain.Item, error) {
	var set beatmapsetJSON
	if err := c.getJSON(ctx, "beatmapset", "/beatmapsets/"+strconv.FormatInt(id, 10), &set); err != nil {
		return nil, fmt.Errorf("fetching beatmapset %d: %w", id, err)
	}
	if set.Status == "ranked" || set.Status == "approved" {
		return set.promotedItem()
	}
	return c.pendingItem(ctx, set)
}

func (c *Client) pendingItem(ctx context.Context, set beatmapsetJSON) (*domain.Item, error) {
	it, anchor, err := set.baseItem()
	if err != nil {
		return nil, err
	}
	records, err := c.lifecycle(ctx, set.ID)
	if err != nil {
		return nil, err
	}
	it.State = domain.ItemPending
	it.LastReadyAnchor = anchor
	it.ReadyTime = projection.ReadyTime(anchor, records, set.beatmapIDs(), c.opts.Rules)
	return it, nil
}

func (c *Client) lifecycle(ctx context.Context, id int64) ([]projection.LifecycleRecord, error) {
	q := url.Values{}
	for _, t := range lifecycleTypes {
		q.Add("types[]", t)
	}
	q.Set("beatmapset_id", strconv.FormatInt(id, 10))
	q.Set("limit", strconv.Itoa(searchPageSize))

	var resp eventsPage
	if err := c.getJSON(ctx, "lifecycle", "/beatmapsets/events?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetching lifecycle of %d: %w", id, err)
	}
	records := make([]projection.LifecycleRecord, 0, len(resp.Events))
	for _, e := range resp.Events {
		if rec, ok := e.toRecord(); ok {
			records = append(records, rec)
		}
	}
	slices.Reverse(records)
	return records, nil
}

// RecentPromotions lists items promoted after since, oldest first.
func (c *Client) RecentPromotions(ctx context.Context, since time.Time) ([]*domain.Item, error) {
	var out []*domain.Item
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("s", "ranked")
		q.Set("nsfw", "true")
		q.Set("q", "ranked>"+strconv.FormatInt(since.Unix(), 10))
		q.Set("page", strconv.Itoa(page))

		var resp searchPage
		if err := c.getJSON(ctx, "search", "/beatmapsets/search?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("searching promotions page %d: %w", page, err)
		}
		for _, set := range resp.Beatmapsets {
			it, err := set.promotedItem()
			if err != nil {
				c.opts.Logger.Warn("skipping promoted set", "id", set.ID, "error", err)
				continue
			}
			out = append(out, it)
		}
		if len(resp.Beatmapsets) < searchPageSize {
			break
		}
	}
	slices.Reverse(out)
	return out, nil
}

// QualifiedItems lists every pending item with readiness and its open
// issue flag resolved. Used by setup.
func (c *Client) QualifiedItems(ctx context.Context) ([]*domain.Item, error) {
	var out []*domain.Item
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("s", "qualified")
		q.Set("sort", "ranked_asc")
		q.Set("nsfw", "true")
		q.Set("page", strconv.Itoa(page))

		var resp searchPage
		if err := c.getJSON(ctx, "search", "/beatmapsets/search?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("searching qualified page %d: %w", page, err)
		}
		for _, set := range resp.Beatmapsets {
			it, err := c.pendingItem(ctx, set)
			if err != nil {
				return nil, err
			}
			flagged, err := c.hasOpenIssue(ctx, set.ID)
			if err != nil {
				return nil, err
			}
			it.HasOpenIssue = flagged
			out = append(out, it)
		}
		if len(resp.Beatmapsets) < searchPageSize {
			break
		}
	}
	return out, nil
}

func (c *Client) hasOpenIssue(ctx context.Context, id int64) (bool, error) {
	q := url.Values{}
	q.Set("beatmapset_id", strconv.FormatInt(id, 10))
	q.Add("message_types[]", "suggestion")
	q.Add("message_types[]", "problem")
	q.Set("only_unresolved", "true")

	var resp discussionsPage
	if err := c.getJSON(ctx, "discussions", "/beatmapsets/discussions?"+q.Encode(), &resp); err != nil {
		return false, fmt.Errorf("fetching discussions of %d: %w", id, err)
	}
	return len(resp.Beatmapsets) > 0, nil
}

// OpenIssues returns the ids of pending items with unresolved issues.
func (c *Client) OpenIssues(ctx context.Context) (map[int64]bool, error) {
	q := url.Values{}
	q.Set("beatmapset_status", "qualified")
	q.Add("message_types[]", "suggestion")
	q.Add("message_types[]", "problem")
	q.Set("only_unresolved", "true")
	q.Set("limit", strconv.Itoa(searchPageSize))

	var resp discussionsPage
	if err := c.getJSON(ctx, "discussions", "/beatmapsets/discussions?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetching open issues: %w", err)
	}
	out := make(map[int64]bool, len(resp.Beatmapsets))
	for _, s := range resp.Beatmapsets {
		out[s.ID] = true
	}
	return out, nil
}
