package mqtt

import "log"

// outboxMsg is a serialized message held for replay after reconnection.
type outboxMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of messages published while the broker
// was unreachable. When full the oldest message is overwritten.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type outbox struct {
	msgs    []outboxMsg
	head    int // next write position
	count   int
	dropped int // overwritten since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]outboxMsg, capacity)}
}

func (o *outbox) push(msg outboxMsg) {
	size := len(o.msgs)
	if o.count == size {
		if o.dropped == 0 {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", size)
		}
		o.dropped++
		// head already points at the oldest entry
		o.msgs[o.head] = msg
		o.head = (o.head + 1) % size
		return
	}
	o.msgs[o.head] = msg
	o.head = (o.head + 1) % size
	o.count++
}

// drain returns the held messages oldest first, plus how many were lost
// to overflow, and empties the outbox.
func (o *outbox) drain() ([]outboxMsg, int) {
	dropped := o.dropped
	o.dropped = 0
	if o.count == 0 {
		return nil, dropped
	}

	size := len(o.msgs)
	out := make([]outboxMsg, o.count)
	start := (o.head - o.count + size) % size
	for i := range out {
		out[i] = o.msgs[(start+i)%size]
		o.msgs[(start+i)%size] = outboxMsg{}
	}
	o.count = 0
	o.head = 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.count
}
