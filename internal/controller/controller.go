// Package controller orchestrates turn-taking against the relay: it
// validates preconditions, establishes or continues the remote session, runs
// the response observer, appends to history, and keeps the persisted snapshot
// consistent.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"relaychat/internal/observer"
	"relaychat/internal/relay"
	"relaychat/internal/session"
)

// Mode selects how assistant responses are retrieved. Fixed per deployment.
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// Precondition failures. Callers are expected to drop the turn quietly
// rather than surface these to the user.
var (
	ErrNoModel = errors.New("no model selected")
	ErrBusy    = errors.New("a turn is already in flight")
)

// Client is the transport surface the controller depends on.
type Client interface {
	StartSession(ctx context.Context, model string, history []relay.Message) (relay.SessionHandle, error)
	ContinueSession(ctx context.Context, h relay.SessionHandle, message string) error
	FetchSnapshot(ctx context.Context, h relay.SessionHandle) (relay.Snapshot, error)
	OpenStream(ctx context.Context, h relay.SessionHandle) (relay.EventStream, error)
	EndSession(h relay.SessionHandle)
}

// Store is the persistence surface. It may be nil for ephemeral use.
type Store interface {
	Save(ctx context.Context, sess *session.Session) error
	Clear(ctx context.Context) error
	SaveLastModel(ctx context.Context, model string) error
}

// Options tunes a Controller.
type Options struct {
	Mode Mode
	// StreamTimeout bounds a push observation; zero means the observer
	// default.
	StreamTimeout time.Duration
	// PollInterval and PollMaxAttempts tune the poll observer; zero means
	// the observer defaults.
	PollInterval    time.Duration
	PollMaxAttempts int
	// OnDelta receives the growing assistant text during a turn.
	OnDelta func(accumulated string)
}

// Controller owns the active session. All turn-taking funnels through Send;
// the busy flag guarantees at most one observation run exists at a time.
type Controller struct {
	client Client
	store  Store
	opts   Options

	mu     sync.Mutex
	sess   *session.Session
	busy   bool
	stream relay.EventStream
}

// New wraps an existing session (possibly restored from a snapshot).
func New(client Client, store Store, sess *session.Session, opts Options) *Controller {
	if sess == nil {
		sess = &session.Session{}
	}
	if opts.Mode == "" {
		opts.Mode = ModePush
	}
	return &Controller{client: client, store: store, sess: sess, opts: opts}
}

// Session exposes the owned session. The caller must not mutate it while a
// turn is in flight; render-only access is fine since turns are serialized.
func (c *Controller) Session() *session.Session {
	return c.sess
}

// Busy reports whether a turn is in flight. The UI disables its input
// surface while true; that is the sole concurrency guard across turns.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Mode returns the configured delivery mode.
func (c *Controller) Mode() Mode {
	return c.opts.Mode
}

// SelectModel records the chosen model. Changing models tears down any
// established remote session (best effort); history is kept and re-sent on
// the next session start.
func (c *Controller) SelectModel(ctx context.Context, model string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}

	if c.sess.Model != model && c.sess.Established() {
		handle := c.sess.Handle()
		go c.client.EndSession(handle)
		c.sess.Key = ""
		c.sess.SessionID = ""
	}
	c.sess.Model = model

	if c.store != nil {
		if err := c.store.SaveLastModel(ctx, model); err != nil {
			return err
		}
	}
	return nil
}

// Send runs one full turn: append the user message, resolve the assistant
// reply under the configured delivery mode, append it, persist the snapshot.
// Preconditions are checked before any history mutation or request. Failed
// turns are never persisted. The busy flag is released exactly once on every
// exit path.
func (c *Controller) Send(ctx context.Context, text string) (string, error) {
	if err := c.begin(); err != nil {
		return "", err
	}
	defer c.release()

	c.sess.Append(relay.NewUserMessage(text))

	var reply string
	var err error
	switch c.opts.Mode {
	case ModePoll:
		reply, err = c.resolvePoll(ctx, text)
	default:
		reply, err = c.resolvePush(ctx, text)
	}
	if err != nil {
		return "", err
	}

	c.sess.Append(relay.NewAssistantMessage(reply))
	if c.store != nil {
		// Persistence is a side effect; a failed write must not fail a
		// turn that already resolved.
		_ = c.store.Save(ctx, c.sess)
	}
	return reply, nil
}

// resolvePush establishes or continues the session, opens the single push
// channel and observes it to resolution.
func (c *Controller) resolvePush(ctx context.Context, text string) (string, error) {
	if !c.sess.Established() {
		// The new user message is already part of the history sent here,
		// so no continue-session call is needed on the first turn.
		handle, err := c.client.StartSession(ctx, c.sess.Model, c.sess.History)
		if err != nil {
			return "", err
		}
		c.sess.Adopt(handle)
	} else {
		if err := c.client.ContinueSession(ctx, c.sess.Handle(), text); err != nil {
			return "", err
		}
	}

	stream, err := c.client.OpenStream(ctx, c.sess.Handle())
	if err != nil {
		return "", err
	}
	c.setStream(stream)
	defer c.setStream(nil)

	obs := &observer.PushObserver{Timeout: c.opts.StreamTimeout, OnDelta: c.opts.OnDelta}
	return obs.Observe(ctx, stream)
}

// resolvePoll re-creates the remote session with the full local history,
// polls its transcript to stability, then releases it. Poll deployments have
// no continue-session: the new message rides in as history.
func (c *Controller) resolvePoll(ctx context.Context, _ string) (string, error) {
	handle, err := c.client.StartSession(ctx, c.sess.Model, c.sess.History)
	if err != nil {
		return "", err
	}
	c.sess.Adopt(handle)

	obs := &observer.PollObserver{
		Interval:    c.opts.PollInterval,
		MaxAttempts: c.opts.PollMaxAttempts,
		OnDelta:     c.opts.OnDelta,
	}
	reply, err := obs.Observe(ctx, func(ctx context.Context) (relay.Snapshot, error) {
		return c.client.FetchSnapshot(ctx, handle)
	})

	// Cleanup courtesy call either way; never blocks the turn result.
	go c.client.EndSession(handle)

	return reply, err
}

// Reset cancels any open stream, releases the remote session best-effort,
// and clears both the in-memory session and the stored snapshot. The
// last-selected model survives.
func (c *Controller) Reset(ctx context.Context) error {
	c.closeStream()

	c.mu.Lock()
	if c.sess.Established() {
		handle := c.sess.Handle()
		go c.client.EndSession(handle)
	}
	c.sess.Reset()
	c.mu.Unlock()

	if c.store != nil {
		return c.store.Clear(ctx)
	}
	return nil
}

// Shutdown is the teardown path: close the push channel and fire the
// end-session courtesy call without waiting. Unlike Reset it leaves the
// persisted snapshot in place so the session can resume after a restart.
func (c *Controller) Shutdown() {
	c.closeStream()

	c.mu.Lock()
	established := c.sess.Established()
	handle := c.sess.Handle()
	c.mu.Unlock()

	if established {
		go c.client.EndSession(handle)
	}
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if strings.TrimSpace(c.sess.Model) == "" {
		return ErrNoModel
	}
	c.busy = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// setStream tracks the single open push channel, closing any predecessor
// first. At most one channel is open per session.
func (c *Controller) setStream(stream relay.EventStream) {
	c.mu.Lock()
	previous := c.stream
	c.stream = stream
	c.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
}

func (c *Controller) closeStream() {
	c.setStream(nil)
}
