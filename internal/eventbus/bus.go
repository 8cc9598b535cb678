// Package eventbus implements the non-blocking publish/subscribe fan-out
// described in spec.md §9 "Delta channel": a full subscriber buffer drops
// the envelope rather than blocking the publisher, so one slow consumer
// can never back-pressure the tick loop. The shape is adapted directly
// from the teacher's Analytics.Track (select/default enqueue) and
// Game.broadcastState (select/default per-client send) — see
// bormisov1-spaceship-online-game/server/analytics.go and game.go.
package eventbus

import "sync"

// Envelope is one published message, scoped to a system_id (spec.md §6
// "Broadcast events ... scoped by system_id"). Control-plane events
// (started/reinforcements/concluded) carry JSON; the high-frequency
// battle:tick event carries a pre-encoded msgpack payload in Binary —
// see SPEC_FULL.md §3.1 for the control/data split this implements.
type Envelope struct {
	Type     string
	BattleID string
	SystemID string
	JSON     interface{}
	Binary   []byte
}

type subscriber struct {
	ch chan Envelope
}

// Bus fans Envelopes out to subscribers grouped by system_id.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscriber]struct{}
	bufSize int
}

// New creates a Bus whose per-subscriber channel holds up to bufSize
// pending envelopes before Publish starts dropping for that subscriber.
func New(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{
		subs:    make(map[string]map[*subscriber]struct{}),
		bufSize: bufSize,
	}
}

// Subscribe registers a new listener for systemID's events, returning a
// receive-only channel and a cancel function. Cancel closes the channel;
// callers must stop reading from it once cancel is called.
func (b *Bus) Subscribe(systemID string) (<-chan Envelope, func()) {
	sub := &subscriber{ch: make(chan Envelope, b.bufSize)}

	b.mu.Lock()
	set, ok := b.subs[systemID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[systemID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	var cancelled bool
	var cancelMu sync.Mutex
	cancel := func() {
		cancelMu.Lock()
		defer cancelMu.Unlock()
		if cancelled {
			return
		}
		cancelled = true

		b.mu.Lock()
		if set, ok := b.subs[systemID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, systemID)
			}
		}
		b.mu.Unlock()
		close(sub.ch)
	}
	return sub.ch, cancel
}

// Publish delivers env to every current subscriber of systemID. A
// subscriber whose buffer is full has this envelope dropped for it; the
// publisher never blocks (spec.md §5 "Shared resources").
func (b *Bus) Publish(systemID string, env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[systemID] {
		select {
		case sub.ch <- env:
		default:
		}
	}
}

// SubscriberCount reports how many listeners are currently registered for
// systemID, mainly for tests and admin diagnostics.
func (b *Bus) SubscriberCount(systemID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[systemID])
}
