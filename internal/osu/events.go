package osu

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexanderramin/rankcast/internal/domain"
)

var feedTypes = []string{"qualify", "rank", "disqualify"}

func eventsPath(page, limit int) string {
	q := url.Values{}
	for _, t := range feedTypes {
		q.Add("types[]", t)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	return "/beatmapsets/events?" + q.Encode()
}

// FetchSince returns every feed event newer than cursor, oldest first,
// together with the newest event id seen. An empty feed returns cursor.
func (c *Client) FetchSince(ctx context.Context, cursor int64) ([]domain.Event, int64, error) {
	ctx, span := c.tracer.Start(ctx, "osu.FetchSince", trace.WithAttributes(attribute.Int64("osu.cursor", cursor)))
	defer span.End()

	var (
		collected []domain.Event
		seen      = map[int64]bool{}
		calls     int
	)

	for page := 1; ; page++ {
		if calls > 0 && calls%c.opts.CallsBeforePause == 0 {
			c.opts.Logger.Info("pausing event feed", "calls", calls, "pause", c.opts.CallPause)
			if err := c.sleep(ctx, c.opts.CallPause); err != nil {
				return nil, cursor, err
			}
		}
		var resp eventsPage
		if err := c.getJSON(ctx, "events", eventsPath(page, c.opts.EventPageSize), &resp); err != nil {
			return nil, cursor, fmt.Errorf("fetching events page %d: %w", page, err)
		}
		calls++
		if len(resp.Events) == 0 {
			break
		}

		done := false
		for _, raw := range resp.Events {
			if raw.ID <= cursor {
				done = true
				break
			}
			if seen[raw.ID] {
				continue
			}
			seen[raw.ID] = true
			ev, ok, err := raw.toDomain()
			if err != nil {
				return nil, cursor, err
			}
			if ok {
				collected = append(collected, ev)
			}
		}
		if done || cursor == 0 {
			break
		}
	}

	slices.Reverse(collected)
	latest := cursor
	for id := range seen {
		latest = max(latest, id)
	}
	span.SetAttributes(attribute.Int("osu.events", len(collected)), attribute.Int("osu.calls", calls))
	return collected, latest, nil
}

// LatestEventID is the id of the newest feed event, or 0 for an empty feed.
func (c *Client) LatestEventID(ctx context.Context) (int64, error) {
	var resp eventsPage
	if err := c.getJSON(ctx, "events", eventsPath(1, 1), &resp); err != nil {
		return 0, fmt.Errorf("fetching latest event: %w", err)
	}
	if len(resp.Events) == 0 {
		return 0, nil
	}
	return resp.Events[0].ID, nil
}
