package observer

import (
	"context"
	"fmt"
	"time"

	"relaychat/internal/relay"
)

// Poll tuning defaults. The interval is deployment-configurable in the
// 500ms-1s range; window size and ceiling are fixed.
const (
	DefaultPollInterval = 750 * time.Millisecond
	DefaultMaxAttempts  = 100
	stabilityReads      = 5
)

// StabilityTimeoutError reports a poll run that exhausted its attempt ceiling
// without ever observing assistant content.
type StabilityTimeoutError struct {
	Attempts int
}

func (e *StabilityTimeoutError) Error() string {
	return fmt.Sprintf("response did not stabilize after %d polls", e.Attempts)
}

// SnapshotFunc fetches the relay's current transcript view.
type SnapshotFunc func(ctx context.Context) (relay.Snapshot, error)

// PollObserver repeatedly fetches transcript snapshots until the extracted
// assistant content holds identical across stabilityReads consecutive reads,
// or the attempt ceiling is hit.
type PollObserver struct {
	// Interval between fetches. Defaults to DefaultPollInterval.
	Interval time.Duration
	// MaxAttempts caps the number of fetches. Defaults to DefaultMaxAttempts.
	MaxAttempts int
	// OnDelta, when set, is called whenever the observed assistant content
	// changes.
	OnDelta func(latest string)
}

// Observe polls fetch until stability or exhaustion. A single failed fetch
// aborts the run immediately; it is never silently skipped. On exhaustion the
// most recently observed content, if any, is returned as a degraded result,
// otherwise a StabilityTimeoutError. The run always resolves by the ceiling.
func (o *PollObserver) Observe(ctx context.Context, fetch SnapshotFunc) (string, error) {
	interval := o.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := o.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	recent := newWindow(stabilityReads)
	var lastSeen string

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		snapshot, err := fetch(ctx)
		if err != nil {
			return "", err
		}

		latest := snapshot.LatestAssistant()
		if latest != "" && latest != lastSeen {
			lastSeen = latest
			if o.OnDelta != nil {
				o.OnDelta(latest)
			}
		}

		recent.push(latest)
		if text, ok := recent.stable(); ok {
			return text, nil
		}

		if attempt >= maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}

	if lastSeen != "" {
		return lastSeen, nil
	}
	return "", &StabilityTimeoutError{Attempts: maxAttempts}
}
