package identity

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Dispatcher delivers notifications to subscribers one at a time from a
// single goroutine, so handlers see them serially and in publish order.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[uint64]Handler
	nextID   uint64
	queue    chan delivery
	done     chan struct{}
	closed   bool
	ctx      context.Context
	logger   zerolog.Logger
}

const dispatchBuffer = 64

// delivery is a queued notification. A targeted delivery goes to one
// subscriber only.
type delivery struct {
	n        Notification
	target   uint64
	targeted bool
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[uint64]Handler),
		queue:    make(chan delivery, dispatchBuffer),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		logger:   log.Logger.With().Str("component", "identity.dispatcher").Logger(),
	}
	go d.loop()
	return d
}

// Subscribe registers h. The returned id addresses h in PublishTo.
func (d *Dispatcher) Subscribe(ctx context.Context, h Handler) (uint64, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = h
	d.ctx = context.WithoutCancel(ctx)
	return id, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers, id)
	}
}

// Publish queues n for every subscriber. It drops n once the dispatcher is
// closed.
func (d *Dispatcher) Publish(n Notification) {
	d.enqueue(delivery{n: n})
}

// PublishTo queues n for the subscriber id alone, in order with everything
// else published. It is dropped if id unsubscribes first.
func (d *Dispatcher) PublishTo(id uint64, n Notification) {
	d.enqueue(delivery{n: n, target: id, targeted: true})
}

func (d *Dispatcher) enqueue(dl delivery) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}
	select {
	case d.queue <- dl:
	case <-d.done:
	}
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
}

func (d *Dispatcher) loop() {
	for {
		select {
		case <-d.done:
			return
		case dl := <-d.queue:
			ctx, handlers := d.snapshot(dl)
			for _, h := range handlers {
				d.deliver(ctx, h, dl.n)
			}
		}
	}
}

func (d *Dispatcher) snapshot(dl delivery) (context.Context, []Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dl.targeted {
		if h, ok := d.handlers[dl.target]; ok {
			return d.ctx, []Handler{h}
		}
		return d.ctx, nil
	}
	ids := make([]uint64, 0, len(d.handlers))
	for id := range d.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.handlers[id])
	}
	return d.ctx, out
}

// deliver keeps a panicking handler from killing the delivery goroutine.
func (d *Dispatcher) deliver(ctx context.Context, h Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("kind", n.Kind.String()).Msg("notification handler panicked")
		}
	}()
	h(ctx, n)
}
