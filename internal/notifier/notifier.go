// Package notifier sends conversion postbacks to the external tracking endpoint.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Status is the conversion status reported to the tracker. Each status maps
// to a fixed tracking slot parameter.
type Status string

const (
	StatusInstall        Status = "install"
	StatusTrialStarted   Status = "trial_started"
	StatusTrialCancelled Status = "trial_renewal_cancelled"
	StatusTrialConverted Status = "trial_converted"
)

var statusSlots = map[Status]string{
	StatusInstall:        "event1",
	StatusTrialStarted:   "event2",
	StatusTrialCancelled: "event3",
	StatusTrialConverted: "event4",
}

var (
	ErrMissingBaseURL = errors.New("postback base URL is required")
	ErrUnknownStatus  = errors.New("unknown postback status")

	// ErrRetriesExhausted wraps the last transport error after the retry
	// ceiling is reached.
	ErrRetriesExhausted = errors.New("postback retries exhausted")
)

// Sender is the outbound call surface the reconciliation engine depends on.
type Sender interface {
	Send(ctx context.Context, subscriberID string, status Status) error
}

// Config controls the retry policy. Every failure kind is retried
// identically with a fixed delay.
type Config struct {
	BaseURL string
	Retries int
	Delay   time.Duration
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Retries <= 0 {
		c.Retries = 10
	}
	if c.Delay <= 0 {
		c.Delay = 6 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Notifier sends HTTP GET postbacks with retry on any failure.
type Notifier struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Notifier, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse postback base URL: %w", err)
	}
	cfg = cfg.withDefaults()
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Named("notifier"),
	}, nil
}

// Send delivers one postback. It retries with a fixed delay up to the
// configured ceiling; exhaustion returns ErrRetriesExhausted wrapping the
// last error, and the caller decides what state to keep.
func (n *Notifier) Send(ctx context.Context, subscriberID string, status Status) error {
	slot, ok := statusSlots[status]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	params := url.Values{}
	params.Set("cnv_id", subscriberID)
	params.Set("cnv_status", string(status))
	params.Set(slot, "1")
	target := n.cfg.BaseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= n.cfg.Retries; attempt++ {
		lastErr = n.call(ctx, target)
		if lastErr == nil {
			n.log.Info("postback delivered",
				zap.String("cnv_id", subscriberID),
				zap.String("cnv_status", string(status)),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		n.log.Error("postback failed",
			zap.String("cnv_id", subscriberID),
			zap.String("cnv_status", string(status)),
			zap.Int("attempt", attempt),
			zap.Int("retries", n.cfg.Retries),
			zap.Error(lastErr),
		)
		if attempt == n.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ctx.Err(), lastErr)
		case <-time.After(n.cfg.Delay):
		}
	}

	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func (n *Notifier) call(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build postback request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("postback request: %w", err)
	}
	defer resp.Body.Close()

	// The response body carries nothing we consume.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("postback status %s", resp.Status)
	}
	return nil
}
