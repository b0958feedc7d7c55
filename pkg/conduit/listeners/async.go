package listeners

import (
	"sync"
	"sync/atomic"

	"github.com/meridianhq/conduit/pkg/conduit"
)

// AsyncListener wraps another listener and processes events asynchronously
// through a buffered channel queue. The client's dispatch goroutine returns
// immediately; events are handled in a background goroutine. When the queue
// is full events are dropped and counted rather than blocking dispatch.
type AsyncListener struct {
	wrapped   conduit.Listener
	queue     chan conduit.Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   int64 // atomic
}

// NewAsyncListener creates an AsyncListener with a buffered queue of the
// given size. Call Start to begin processing and Close to shut down.
//
// Example:
//
//	async := listeners.NewAsyncListener(slowHandler, 100).Start()
//	defer async.Close()
//	client.On("task/#", async.Listen)
func NewAsyncListener(wrapped conduit.Listener, queueSize int) *AsyncListener {
	if queueSize <= 0 {
		queueSize = 100 // Default queue size
	}

	return &AsyncListener{
		wrapped: wrapped,
		queue:   make(chan conduit.Event, queueSize),
		done:    make(chan struct{}),
	}
}

// Start begins processing events in a background goroutine. Returns the
// same AsyncListener for method chaining.
func (a *AsyncListener) Start() *AsyncListener {
	a.wg.Add(1)
	go a.processQueue()
	return a
}

// Listen queues the event and returns immediately. Register this method
// with Client.On. Events arriving while the queue is full or after Close
// are dropped and counted.
func (a *AsyncListener) Listen(event conduit.Event) {
	if a.IsClosed() {
		atomic.AddInt64(&a.dropped, 1)
		return
	}

	select {
	case a.queue <- event:
	default:
		atomic.AddInt64(&a.dropped, 1)
	}
}

// processQueue runs in a background goroutine and hands events to the
// wrapped listener one at a time.
func (a *AsyncListener) processQueue() {
	defer a.wg.Done()

	for {
		select {
		case event := <-a.queue:
			a.wrapped(event)
		case <-a.done:
			// Shutdown signal received, drain remaining events
			a.drainQueue()
			return
		}
	}
}

// drainQueue processes any events remaining in the queue during shutdown.
func (a *AsyncListener) drainQueue() {
	for {
		select {
		case event := <-a.queue:
			a.wrapped(event)
		default:
			return
		}
	}
}

// Close shuts down the background goroutine after processing everything
// already queued. Events arriving after Close are dropped.
func (a *AsyncListener) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		// Don't close the queue channel; late Listen calls may still select on it
	})
	return nil
}

// QueueSize returns the current number of events in the queue.
func (a *AsyncListener) QueueSize() int {
	return len(a.queue)
}

// QueueCapacity returns the maximum capacity of the queue.
func (a *AsyncListener) QueueCapacity() int {
	return cap(a.queue)
}

// Dropped returns the number of events dropped due to a full queue or
// arrival after Close.
func (a *AsyncListener) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

// IsClosed returns true if the listener has been closed.
func (a *AsyncListener) IsClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}
