package mqtt

import "log"

// message is a serialized publish kept for replay after reconnection.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable and hands
// them back oldest first on reconnect. When full, the oldest message is
// discarded. Not safe for concurrent use; the caller synchronizes.
type outbox struct {
	msgs    []message
	limit   int
	dropped int
}

func newOutbox(limit int) *outbox {
	return &outbox{msgs: make([]message, 0, limit), limit: limit}
}

func (o *outbox) add(m message) {
	if len(o.msgs) == o.limit {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.limit)
		}
		copy(o.msgs, o.msgs[1:])
		o.msgs = o.msgs[:len(o.msgs)-1]
		o.dropped++
	}
	o.msgs = append(o.msgs, m)
}

// take empties the outbox, returning its messages and how many were dropped
// since the previous take.
func (o *outbox) take() ([]message, int) {
	if len(o.msgs) == 0 && o.dropped == 0 {
		return nil, 0
	}
	out := make([]message, len(o.msgs))
	copy(out, o.msgs)
	dropped := o.dropped
	o.msgs = o.msgs[:0]
	o.dropped = 0
	return out, dropped
}

func (o *outbox) len() int {
	return len(o.msgs)
}
