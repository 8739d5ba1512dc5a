package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/metrics"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// Sink receives published snapshots from the notifier's background pump,
// never from the validation path.  Delivery is best effort.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap types.Snapshot) error
}

// NotifierConfig holds the parameters for NewNotifier.
type NotifierConfig struct {
	// SinkTimeout bounds a single sink delivery.  Defaults to 2s.
	SinkTimeout time.Duration
}

// Notifier fans registry snapshots out to live subscribers and sinks.
//
// Every channel it hands out has a one-slot buffer holding the newest
// snapshot; a slow reader skips intermediate versions but always ends up
// with the latest one.  Publish never blocks.
//
// Snapshots are shared between receivers and must be treated as read-only.
type Notifier struct {
	mu      sync.Mutex
	ready   bool
	closed  bool
	current types.Snapshot
	subs    map[uuid.UUID]chan types.Snapshot

	sinks       []Sink
	sinkTimeout time.Duration
	pending     chan types.Snapshot

	logger  *slog.Logger
	metrics *metrics.Metrics

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewNotifier(cfg NotifierConfig, logger *slog.Logger, m *metrics.Metrics, sinks ...Sink) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.SinkTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Notifier{
		subs:        make(map[uuid.UUID]chan types.Snapshot),
		sinks:       sinks,
		sinkTimeout: timeout,
		pending:     make(chan types.Snapshot, 1),
		logger:      logger,
		metrics:     m,
		done:        make(chan struct{}),
	}
}

// Subscription is one live presence feed.  Updates is closed when the
// subscription ends.
type Subscription struct {
	ID      uuid.UUID
	Initial types.Snapshot
	Updates <-chan types.Snapshot

	n        *Notifier
	stopCtx  func() bool
	doneOnce sync.Once
}

// Close ends the subscription.  Safe to call more than once.
func (s *Subscription) Close() {
	if s.stopCtx != nil {
		s.stopCtx()
	}
	s.release()
}

func (s *Subscription) release() {
	s.doneOnce.Do(func() { s.n.unsubscribe(s.ID) })
}

// MarkReady installs the initial roster and starts accepting subscribers.
// It does not fan out.
func (n *Notifier) MarkReady(initial types.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = initial
	n.ready = true
}

func (n *Notifier) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

// InitialSnapshot serves the full roster to a client that just connected.
func (n *Notifier) InitialSnapshot() (types.Snapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.ready {
		return types.Snapshot{}, ErrNotReady
	}
	return n.current, nil
}

// Subscribe registers a feed that lives until ctx is done or Close is
// called.  The current roster is returned in Initial.
func (n *Notifier) Subscribe(ctx context.Context) (*Subscription, error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, ErrNotifierClosed
	}
	if !n.ready {
		n.mu.Unlock()
		return nil, ErrNotReady
	}

	id := uuid.New()
	ch := make(chan types.Snapshot, 1)
	n.subs[id] = ch
	sub := &Subscription{ID: id, Initial: n.current, Updates: ch, n: n}
	n.metrics.SetSubscribers(len(n.subs))
	n.mu.Unlock()

	sub.stopCtx = context.AfterFunc(ctx, sub.release)
	return sub, nil
}

func (n *Notifier) unsubscribe(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.subs[id]
	if !ok {
		return
	}
	delete(n.subs, id)
	n.metrics.SetSubscribers(len(n.subs))
	close(ch)
}

// Publish hands snap to every subscriber and queues it for the sinks.
func (n *Notifier) Publish(snap types.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.current = snap
	for _, ch := range n.subs {
		offerLatest(ch, snap)
	}
	if len(n.sinks) > 0 {
		offerLatest(n.pending, snap)
	}
}

// offerLatest replaces whatever is buffered in ch with snap.
func offerLatest(ch chan types.Snapshot, snap types.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Start runs the sink pump in the background.  Without sinks it is a no-op.
func (n *Notifier) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		if len(n.sinks) == 0 {
			n.logger.Info("presence sinks disabled (none configured)")
			close(n.done)
			return
		}

		ctx, n.cancel = context.WithCancel(ctx)
		go n.loop(ctx)

		names := make([]string, 0, len(n.sinks))
		for _, s := range n.sinks {
			names = append(names, s.Name())
		}
		n.logger.Info("presence sink pump started", "sinks", names)
	})
}

// Stop ends the sink pump and closes every subscription.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		// Never started: claim the once so a late Start stays a no-op.
		n.startOnce.Do(func() { close(n.done) })
		if n.cancel != nil {
			n.cancel()
		}
		<-n.done

		n.mu.Lock()
		defer n.mu.Unlock()
		n.closed = true
		for id, ch := range n.subs {
			delete(n.subs, id)
			close(ch)
		}
		n.metrics.SetSubscribers(0)
	})
}

func (n *Notifier) loop(ctx context.Context) {
	defer close(n.done)

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-n.pending:
			n.deliver(ctx, snap)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, snap types.Snapshot) {
	for _, s := range n.sinks {
		sctx, cancel := context.WithTimeout(ctx, n.sinkTimeout)
		err := s.Publish(sctx, snap)
		cancel()
		if err != nil {
			n.metrics.IncSinkFailure(s.Name())
			n.logger.Warn("presence sink publish failed",
				"sink", s.Name(), "version", snap.Version, "err", err)
		}
	}
}
