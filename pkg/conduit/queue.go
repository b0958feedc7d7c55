package conduit

// queuedFrame is an already-serialized outbound frame waiting for a live
// connection. The type is kept alongside the bytes for logging and metrics.
type queuedFrame struct {
	msgType string
	data    []byte
}

// sendQueue is the bounded FIFO buffer for messages issued while the
// connection is not open. When full, the oldest entry is evicted to admit the
// newest: bounded best-effort delivery, not guaranteed delivery. It is not
// goroutine-safe; the Client mutates it only under its own lock.
type sendQueue struct {
	frames   []queuedFrame
	capacity int
}

func newSendQueue(capacity int) *sendQueue {
	return &sendQueue{
		frames:   make([]queuedFrame, 0, capacity),
		capacity: capacity,
	}
}

// push appends a frame, evicting the oldest entry first when the queue is at
// capacity. It returns the evicted frame and whether an eviction happened.
func (q *sendQueue) push(frame queuedFrame) (queuedFrame, bool) {
	var evicted queuedFrame
	var didEvict bool

	if len(q.frames) >= q.capacity {
		evicted = q.frames[0]
		didEvict = true
		q.frames = q.frames[1:]
	}
	q.frames = append(q.frames, frame)

	return evicted, didEvict
}

// peek returns the oldest frame without removing it.
func (q *sendQueue) peek() (queuedFrame, bool) {
	if len(q.frames) == 0 {
		return queuedFrame{}, false
	}
	return q.frames[0], true
}

// pop removes the oldest frame.
func (q *sendQueue) pop() (queuedFrame, bool) {
	if len(q.frames) == 0 {
		return queuedFrame{}, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

func (q *sendQueue) len() int {
	return len(q.frames)
}
