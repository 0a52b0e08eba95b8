package mqtt

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages that could not be sent while the broker was away.
// A retained message supersedes an older retained message on the same topic,
// and when the outbox is full QoS 0 event chatter is evicted before run log
// records and system state. Not safe for concurrent use.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	evicted  int // since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{capacity: capacity}
}

// push queues msg. It returns true the first time a message is evicted
// since the last drain.
func (o *outbox) push(msg bufferedMsg) bool {
	if msg.retained {
		for i, m := range o.msgs {
			if m.retained && m.topic == msg.topic {
				o.remove(i)
				break
			}
		}
	}

	first := false
	if len(o.msgs) == o.capacity {
		o.remove(o.victim())
		o.evicted++
		first = o.evicted == 1
	}
	o.msgs = append(o.msgs, msg)
	return first
}

// victim picks the oldest QoS 0 message, or the oldest message if every
// queued message needs delivery.
func (o *outbox) victim() int {
	for i, m := range o.msgs {
		if m.qos == 0 {
			return i
		}
	}
	return 0
}

func (o *outbox) remove(i int) {
	o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
}

// drainAll returns the queued messages in the order they were queued and
// empties the outbox.
func (o *outbox) drainAll() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = nil
	o.evicted = 0
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
