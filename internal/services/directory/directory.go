// Package directory publishes session summaries to storage off the event loop and serves them back
// to the HTTP API and CLI.
package directory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/storage"
)

const (
	// Buffer size for pending writes
	defaultQueueSize = 256

	// Time allowed for one storage write
	defaultWriteTimeout = 2 * time.Second
)

// Config controls a Directory
type Config struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// op is one pending write. Exactly one field is set.
type op struct {
	save   *model.SessionRecord
	forget model.SessionID
	flush  chan struct{}
}

// Directory writes session records asynchronously. Publish and Forget never block, so they are
// safe to call from event loop turns.
type Directory struct {
	storage storage.Storage
	cfg     Config
	logger  *slog.Logger

	ops  chan op
	kick chan struct{}
	done chan struct{}

	// forgets that did not fit in ops. Applied once every op queued before them has been.
	mu       sync.Mutex
	overflow map[model.SessionID]struct{}
}

// New creates a Directory over store. Call Run to start writing.
func New(store storage.Storage, cfg Config, logger *slog.Logger) *Directory {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Directory{
		storage:  store,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "directory")),
		ops:      make(chan op, cfg.QueueSize),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		overflow: make(map[model.SessionID]struct{}),
	}
}

// Run writes queued records until ctx is cancelled, then drains whatever is still queued
func (d *Directory) Run(ctx context.Context) {
	d.logger.Info("directory started")
	defer close(d.done)
	for {
		select {
		case o := <-d.ops:
			d.apply(o)
		case <-d.kick:
		case <-ctx.Done():
			drained := 0
			for {
				select {
				case o := <-d.ops:
					d.apply(o)
					drained++
				default:
					d.forgetOverflow()
					d.logger.Info("directory stopped", slog.Int("drained", drained))
					return
				}
			}
		}
		if len(d.ops) == 0 {
			d.forgetOverflow()
		}
	}
}

// Publish queues rec for storage. If the queue is full the record is dropped; a later
// publish for the same session supersedes it anyway.
func (d *Directory) Publish(rec model.SessionRecord) {
	d.enqueue(op{save: &rec})
}

// Forget queues removal of a session's record. Nothing supersedes a removal, so when the queue
// is full it is held aside and applied after the writes already queued.
func (d *Directory) Forget(id model.SessionID) {
	select {
	case d.ops <- op{forget: id}:
		return
	default:
	}

	d.mu.Lock()
	d.overflow[id] = struct{}{}
	d.mu.Unlock()
	select {
	case d.kick <- struct{}{}:
	default:
	}
	d.logger.Warn("directory queue full - deferring removal", slog.String("session_id", string(id)))
}

func (d *Directory) enqueue(o op) {
	select {
	case d.ops <- o:
	default:
		d.logger.Warn("directory write dropped - queue full")
	}
}

// forgetOverflow deletes every deferred removal. Session ids are never reused, so no write
// queued after a removal was deferred can name the same session.
func (d *Directory) forgetOverflow() {
	d.mu.Lock()
	ids := make([]model.SessionID, 0, len(d.overflow))
	for id := range d.overflow {
		ids = append(ids, id)
	}
	clear(d.overflow)
	d.mu.Unlock()

	for _, id := range ids {
		d.apply(op{forget: id})
	}
}

// Flush waits until every write queued before the call has been applied
func (d *Directory) Flush(ctx context.Context) error {
	o := op{flush: make(chan struct{})}
	select {
	case d.ops <- o:
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-o.flush:
		return nil
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned
func (d *Directory) Done() <-chan struct{} {
	return d.done
}

func (d *Directory) apply(o op) {
	if o.flush != nil {
		d.forgetOverflow()
		close(o.flush)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	if o.save != nil {
		if err := d.storage.SaveSession(ctx, o.save); err != nil {
			d.logger.Error("failed to save session record",
				slog.String("session_id", string(o.save.ID)),
				slog.Any("error", err))
		}
		return
	}
	if err := d.storage.DeleteSession(ctx, o.forget); err != nil {
		d.logger.Error("failed to delete session record",
			slog.String("session_id", string(o.forget)),
			slog.Any("error", err))
	}
}

// List returns every published session record
func (d *Directory) List(ctx context.Context) ([]*model.SessionRecord, error) {
	return d.storage.ListSessions(ctx)
}

// Get returns one published session record
func (d *Directory) Get(ctx context.Context, id model.SessionID) (*model.SessionRecord, error) {
	return d.storage.GetSession(ctx, id)
}

// Ping checks the backing storage
func (d *Directory) Ping(ctx context.Context) error {
	return d.storage.Ping(ctx)
}
