// Package loader drives the pending/fulfilled/rejected lifecycle of each
// product collection and delivers successful batches to their sinks.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"product-catalog-engine/internal/domain"
	"product-catalog-engine/internal/metrics"
	"product-catalog-engine/internal/store"
)

// Sink receives a validated batch for a collection.
type Sink func([]domain.Product)

// Fetcher retrieves one collection batch.
type Fetcher func(ctx context.Context) ([]domain.Product, error)

// Listener is notified after every state transition. Listeners run in
// transition order and must not start or complete loads themselves.
type Listener func(domain.Collection, domain.LoadState)

// Ticket identifies one load request.
type Ticket struct {
	Collection domain.Collection `json:"collection"`
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
}

// Controller holds the load state of every collection.
//
// Overlapping loads are not cancelled. Each completion applies its own
// transition, so whichever completes last determines both the state and the
// delivered data.
type Controller struct {
	// applyMu serializes transitions, sink delivery and notification so
	// listeners and sinks observe completions in the same order.
	applyMu sync.Mutex

	mu        sync.RWMutex
	states    map[domain.Collection]domain.LoadState
	seq       uint64
	sinks     map[domain.Collection]Sink
	listeners []Listener

	validate *validator.Validate
	logger   *zap.Logger
}

// NewController returns a controller with every collection idle.
func NewController(v *validator.Validate, logger *zap.Logger) *Controller {
	if v == nil {
		v = domain.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		states:   make(map[domain.Collection]domain.LoadState, len(domain.Collections)),
		sinks:    make(map[domain.Collection]Sink, len(domain.Collections)),
		validate: v,
		logger:   logger.Named("loader"),
	}
	for _, coll := range domain.Collections {
		c.states[coll] = domain.LoadState{Status: domain.LoadIdle}
	}
	return c
}

// SetSink registers where fulfilled batches for coll are delivered.
func (c *Controller) SetSink(coll domain.Collection, sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks[coll] = sink
}

// Subscribe registers a listener for state transitions.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Begin moves coll to pending and clears any previous failure reason.
// It is legal from every state.
func (c *Controller) Begin(coll domain.Collection) (Ticket, error) {
	if _, err := domain.ParseCollection(string(coll)); err != nil {
		return Ticket{}, err
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	c.seq++
	t := Ticket{Collection: coll, ID: uuid.NewString(), Seq: c.seq}
	state := domain.LoadState{Status: domain.LoadPending, TicketID: t.ID, UpdatedAt: time.Now().UTC()}
	c.states[coll] = state
	c.mu.Unlock()

	c.logger.Debug("load started", zap.String("collection", string(coll)), zap.String("ticket", t.ID))
	c.notify(coll, state)
	return t, nil
}

// Complete finishes the load identified by t. A nil fetchErr with a batch
// that passes validation fulfills the collection and delivers the batch to
// its sink; anything else rejects it and leaves previously delivered data
// untouched. The resulting state is returned along with the rejection cause.
func (c *Controller) Complete(t Ticket, items []domain.Product, fetchErr error) (domain.LoadState, error) {
	if _, err := domain.ParseCollection(string(t.Collection)); err != nil {
		return domain.LoadState{}, err
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	state := domain.LoadState{Status: domain.LoadFulfilled, TicketID: t.ID}
	if fetchErr == nil {
		fetchErr = domain.ValidateProducts(c.validate, items)
	}
	if fetchErr != nil {
		state.Status = domain.LoadRejected
		state.Reason = reason(t.Collection, fetchErr)
		c.logger.Warn("load rejected",
			zap.String("collection", string(t.Collection)),
			zap.String("ticket", t.ID),
			zap.Error(fetchErr),
		)
	} else {
		c.mu.RLock()
		sink := c.sinks[t.Collection]
		c.mu.RUnlock()
		if sink != nil {
			sink(items)
		}
		c.logger.Info("load fulfilled",
			zap.String("collection", string(t.Collection)),
			zap.String("ticket", t.ID),
			zap.Int("items", len(items)),
		)
	}

	state.UpdatedAt = time.Now().UTC()
	c.mu.Lock()
	c.states[t.Collection] = state
	c.mu.Unlock()

	c.notify(t.Collection, state)
	return state, fetchErr
}

func (c *Controller) notify(coll domain.Collection, state domain.LoadState) {
	metrics.LoadTransitions.WithLabelValues(string(coll), string(state.Status)).Inc()
	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()
	for _, l := range listeners {
		l(coll, state)
	}
}

func reason(coll domain.Collection, err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("failed to load %s", coll)
}

// State returns the load state of coll.
func (c *Controller) State(coll domain.Collection) domain.LoadState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.states[coll]
}

// States returns the load state of every collection.
func (c *Controller) States() map[domain.Collection]domain.LoadState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[domain.Collection]domain.LoadState, len(c.states))
	for k, v := range c.states {
		out[k] = v
	}
	return out
}

// Task is an in-flight load started by Load.
type Task struct {
	Ticket Ticket

	done  chan struct{}
	state domain.LoadState
	err   error
}

// Done is closed once the load has completed.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the state the load ended in and its failure, if any.
// It is only meaningful after Done is closed.
func (t *Task) Result() (domain.LoadState, error) {
	return t.state, t.err
}

// Wait blocks until the load completes or ctx is done. It returns the fetch
// or validation error for a rejected load.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load begins a load of coll and runs fetch in the background. The returned
// task completes after the transition has been applied.
func (c *Controller) Load(ctx context.Context, coll domain.Collection, fetch Fetcher) (*Task, error) {
	ticket, err := c.Begin(coll)
	if err != nil {
		return nil, err
	}
	task := &Task{Ticket: ticket, done: make(chan struct{})}
	go func() {
		defer close(task.done)
		items, fetchErr := fetch(ctx)
		task.state, task.err = c.Complete(ticket, items, fetchErr)
	}()
	return task, nil
}

// LoadAll loads the catalog and the recommendations from src concurrently
// and waits for both. The collections succeed or fail independently; the
// first failure is returned.
func (c *Controller) LoadAll(ctx context.Context, src store.ProductSource, recommendationLimit int) error {
	fetchers := map[domain.Collection]Fetcher{
		domain.CollectionCatalog: src.ListProducts,
		domain.CollectionRecommendations: func(ctx context.Context) ([]domain.Product, error) {
			return src.ListRecommendations(ctx, recommendationLimit)
		},
	}

	var g errgroup.Group
	for _, coll := range domain.Collections {
		task, err := c.Load(ctx, coll, fetchers[coll])
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := task.Wait(ctx); err != nil {
				return fmt.Errorf("loader: %s: %w", coll, err)
			}
			return nil
		})
	}
	return g.Wait()
}
