package mqtt

// bufferCapacity bounds the messages held while the broker is unreachable.
// At the default 10s publish interval this is over an hour of readings for
// one meter.
const bufferCapacity = 500

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that keeps the newest messages while
// disconnected. Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf     []bufferedMsg
	next    int // next write position
	count   int
	dropped int // messages overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

// push appends msg, overwriting the oldest message when full.
func (r *ringBuffer) push(msg bufferedMsg) {
	r.buf[r.next] = msg
	r.next = (r.next + 1) % len(r.buf)
	if r.count == len(r.buf) {
		r.dropped++
		return
	}
	r.count++
}

// drain returns buffered messages oldest first, plus how many were dropped
// to make room, and empties the buffer.
func (r *ringBuffer) drain() ([]bufferedMsg, int) {
	dropped := r.dropped
	r.dropped = 0
	if r.count == 0 {
		return nil, dropped
	}

	out := make([]bufferedMsg, 0, r.count)
	oldest := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(oldest+i)%len(r.buf)])
	}
	r.next, r.count = 0, 0
	return out, dropped
}

func (r *ringBuffer) len() int {
	return r.count
}
