// ABOUTME: Asynchronous queries: one cancellable handle per in-flight question
// ABOUTME: Handles are tracked by the engine so Shutdown can cancel them
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harper/ragcore/internal/models"
)

// QueryHandle is the awaitable result of QueryAsync
type QueryHandle struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	result models.QueryResult
}

// ID identifies the query
func (h *QueryHandle) ID() string {
	return h.id
}

// Done is closed once the result is available
func (h *QueryHandle) Done() <-chan struct{} {
	return h.done
}

// Result returns the result and whether the query has finished
func (h *QueryHandle) Result() (models.QueryResult, bool) {
	select {
	case <-h.done:
	default:
		return models.QueryResult{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, true
}

// Wait blocks until the query finishes or ctx ends. Giving up on the wait
// does not cancel the query; call Cancel for that.
func (h *QueryHandle) Wait(ctx context.Context) (models.QueryResult, error) {
	select {
	case <-h.done:
		r, _ := h.Result()
		return r, nil
	case <-ctx.Done():
		return models.QueryResult{}, ctx.Err()
	}
}

// Cancel stops the query; its result reports ErrCancelled unless it had already finished
func (h *QueryHandle) Cancel() {
	h.cancel()
}

func (h *QueryHandle) finish(r models.QueryResult) {
	h.mu.Lock()
	h.result = r
	h.mu.Unlock()
	close(h.done)
}

// QueryAsync runs Query in its own goroutine and returns immediately.
// onDone, when non-nil, is called with the result before Done is closed.
func (e *Engine) QueryAsync(ctx context.Context, question string, opts QueryOptions, onDone func(models.QueryResult)) *QueryHandle {
	qctx, cancel := context.WithCancel(ctx)
	h := &QueryHandle{
		id:     "query_" + uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if e.state != StateInitialized {
		state := e.state
		e.mu.Unlock()
		cancel()
		r := failedQuery(time.Now(), question, models.Statef("engine is %s", state))
		if onDone != nil {
			onDone(r)
		}
		h.finish(r)
		return h
	}
	e.handles[h.id] = h
	e.inflight.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.inflight.Done()
		defer cancel()
		r := e.Query(qctx, question, opts)
		if errors.Is(r.Err, models.ErrCancelled) {
			e.logger.Info("async query cancelled", "id", h.id)
		}

		e.mu.Lock()
		delete(e.handles, h.id)
		e.mu.Unlock()

		if onDone != nil {
			onDone(r)
		}
		h.finish(r)
	}()
	return h
}
