// Package osu talks to the osu! API v2 and maps its beatmapset lifecycle
// onto rankcast items and events.
package osu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/alexanderramin/rankcast/internal/projection"
)

const tracerName = "github.com/alexanderramin/rankcast/internal/osu"

type Options struct {
	// BaseURL is the API root, e.g. https://osu.ppy.sh/api/v2.
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Rules      projection.Rules
	Logger     *slog.Logger

	// RequestInterval is the minimum spacing between requests.
	RequestInterval time.Duration
	// EventPageSize is the events feed page size.
	EventPageSize int
	// CallsBeforePause consecutive feed calls trigger a CallPause sleep.
	CallsBeforePause int
	CallPause        time.Duration

	MaxTries     uint
	RetryInitial time.Duration
	RetryMax     time.Duration
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.EventPageSize <= 0 {
		o.EventPageSize = 5
	}
	if o.CallsBeforePause <= 0 {
		o.CallsBeforePause = 30
	}
	if o.MaxTries == 0 {
		o.MaxTries = 5
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = 500 * time.Millisecond
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 30 * time.Second
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o
}

// Client is a rate-limited, retrying osu! API client.
type Client struct {
	opts    Options
	limiter *rate.Limiter
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options) *Client {
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}
	return &Client{
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		tracer:  otel.Tracer(tracerName),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// getJSON fetches path relative to BaseURL and decodes the body into out,
// retrying transient failures with exponential backoff.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	ctx, span := c.tracer.Start(ctx, "osu."+op, trace.WithAttributes(attribute.String("osu.path", path)))
	defer span.End()

	url := c.opts.BaseURL + path
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.do(ctx, op, url, out)
		if err == nil {
			return struct{}{}, nil
		}
		var fe *FetchError
		if !errors.As(err, &fe) || !fe.Transient() {
			return struct{}{}, backoff.Permanent(err)
		}
		c.opts.Logger.Warn("upstream request failed", "op", op, "attempt", attempt, "status", fe.Status, "error", err)
		if fe.Status == http.StatusUnauthorized && c.opts.Tokens != nil {
			c.opts.Tokens.Invalidate()
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.opts.MaxTries),
	)
	span.SetAttributes(attribute.Int("osu.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInitial
	b.MaxInterval = c.opts.RetryMax
	return b
}

func (c *Client) do(ctx context.Context, op, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Tokens != nil {
		tok, err := c.opts.Tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("obtaining token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &FetchError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		fe := &FetchError{Op: op, URL: url, Status: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				fe.Err = backoff.RetryAfter(secs)
			}
		}
		return fe
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}
