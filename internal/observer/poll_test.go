package observer

import (
	"context"
	"errors"
	"testing"
	"time"

	"relaychat/internal/relay"
)

// scriptedFetch replays snapshot reads; past the script it repeats the last
// entry.
func scriptedFetch(reads []relay.Snapshot, calls *int) SnapshotFunc {
	return func(ctx context.Context) (relay.Snapshot, error) {
		*calls++
		i := *calls - 1
		if i >= len(reads) {
			i = len(reads) - 1
		}
		return reads[i], nil
	}
}

func fragments(texts ...string) []relay.Snapshot {
	snaps := make([]relay.Snapshot, 0, len(texts))
	for _, text := range texts {
		snaps = append(snaps, relay.Snapshot{Fragments: []string{text}})
	}
	return snaps
}

func fastPoll() *PollObserver {
	return &PollObserver{Interval: time.Millisecond}
}

func TestPollStabilityAtFifthIdenticalRead(t *testing.T) {
	// Reads grow, then hold: stability is declared on the 5th identical
	// "ABC", which is the 7th poll.
	var calls int
	fetch := scriptedFetch(fragments("A", "AB", "ABC", "ABC", "ABC", "ABC", "ABC"), &calls)

	obs := fastPoll()
	text, err := obs.Observe(context.Background(), fetch)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if text != "ABC" {
		t.Errorf("expected stable text ABC, got %q", text)
	}
	if calls != 7 {
		t.Errorf("expected stability at the 7th poll, resolved after %d", calls)
	}
}

func TestPollMessageShapeSnapshot(t *testing.T) {
	snap := relay.Snapshot{Messages: []relay.Message{
		{Role: relay.RoleUser, Content: "hi"},
		{Role: relay.RoleAssistant, Content: "done"},
	}}
	var calls int
	fetch := scriptedFetch([]relay.Snapshot{snap}, &calls)

	obs := fastPoll()
	text, err := obs.Observe(context.Background(), fetch)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if text != "done" {
		t.Errorf("expected last assistant message, got %q", text)
	}
}

func TestPollNeverStabilizesReturnsLastObserved(t *testing.T) {
	// Content changes on every read: no 5-window ever stabilizes, but the
	// run must still resolve by the ceiling with the last observed text.
	calls := 0
	fetch := func(ctx context.Context) (relay.Snapshot, error) {
		calls++
		return relay.Snapshot{Fragments: []string{"v", string(rune('a' + calls%20))}}, nil
	}

	obs := &PollObserver{Interval: time.Millisecond, MaxAttempts: 12}
	text, err := obs.Observe(context.Background(), fetch)
	if err != nil {
		t.Fatalf("exhaustion with observed content must degrade, not fail: %v", err)
	}
	if text == "" {
		t.Error("expected last observed content")
	}
	if calls != 12 {
		t.Errorf("expected exactly 12 attempts, got %d", calls)
	}
}

func TestPollExhaustionWithoutContent(t *testing.T) {
	var calls int
	fetch := scriptedFetch(fragments(""), &calls)

	obs := &PollObserver{Interval: time.Millisecond, MaxAttempts: 8}
	_, err := obs.Observe(context.Background(), fetch)
	var staleErr *StabilityTimeoutError
	if !errors.As(err, &staleErr) {
		t.Fatalf("expected StabilityTimeoutError, got %v", err)
	}
	if staleErr.Attempts != 8 {
		t.Errorf("expected 8 attempts recorded, got %d", staleErr.Attempts)
	}
	if calls != 8 {
		t.Errorf("expected exactly 8 fetches, got %d", calls)
	}
}

func TestPollEmptyReadsDoNotStabilize(t *testing.T) {
	// Five identical empty reads are not stability.
	var calls int
	fetch := scriptedFetch(fragments("", "", "", "", "", "", "done", "done", "done", "done", "done"), &calls)

	obs := fastPoll()
	text, err := obs.Observe(context.Background(), fetch)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if text != "done" {
		t.Errorf("expected eventual stable text, got %q", text)
	}
	if calls != 11 {
		t.Errorf("expected 11 polls, got %d", calls)
	}
}

func TestPollFetchErrorAbortsImmediately(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0
	fetch := func(ctx context.Context) (relay.Snapshot, error) {
		calls++
		if calls == 3 {
			return relay.Snapshot{}, boom
		}
		return relay.Snapshot{Fragments: []string{"x"}}, nil
	}

	obs := fastPoll()
	_, err := obs.Observe(context.Background(), fetch)
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error to propagate, got %v", err)
	}
	if calls != 3 {
		t.Errorf("poll must abort on the failed fetch, got %d calls", calls)
	}
}

func TestPollOnDeltaFiresOnChange(t *testing.T) {
	var calls int
	fetch := scriptedFetch(fragments("A", "A", "AB", "AB", "AB", "AB", "AB"), &calls)

	var deltas []string
	obs := &PollObserver{Interval: time.Millisecond, OnDelta: func(s string) { deltas = append(deltas, s) }}
	if _, err := obs.Observe(context.Background(), fetch); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(deltas) != 2 || deltas[0] != "A" || deltas[1] != "AB" {
		t.Errorf("expected deltas on change only, got %v", deltas)
	}
}

func TestPollContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(ctx context.Context) (relay.Snapshot, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return relay.Snapshot{Fragments: []string{"x"}}, nil
	}

	obs := &PollObserver{Interval: time.Hour}
	_, err := obs.Observe(ctx, fetch)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWindowStability(t *testing.T) {
	tests := []struct {
		name   string
		reads  []string
		want   string
		stable bool
	}{
		{"not full", []string{"a", "a", "a", "a"}, "", false},
		{"full identical", []string{"a", "a", "a", "a", "a"}, "a", true},
		{"full mixed", []string{"a", "a", "b", "a", "a"}, "", false},
		{"full empty", []string{"", "", "", "", ""}, "", false},
		{"stabilizes after churn", []string{"a", "b", "c", "c", "c", "c", "c"}, "c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWindow(5)
			for _, read := range tt.reads {
				w.push(read)
			}
			got, ok := w.stable()
			if ok != tt.stable || got != tt.want {
				t.Errorf("stable() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.stable)
			}
		})
	}
}
