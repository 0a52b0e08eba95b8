package mqtt

import "testing"

func payloads(msgs []bufferedMsg) string {
	s := ""
	for _, m := range msgs {
		s += string(m.payload)
	}
	return s
}

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(4)
	if got := o.drainAll(); got != nil {
		t.Errorf("expected nil from empty outbox, got %d items", len(got))
	}
}

func TestOutboxKeepsOrder(t *testing.T) {
	o := newOutbox(4)
	for _, p := range []string{"a", "b", "c"} {
		if o.push(bufferedMsg{topic: "events", payload: []byte(p)}) {
			t.Errorf("push %s reported an eviction", p)
		}
	}
	if o.len() != 3 {
		t.Errorf("len: got %d, want 3", o.len())
	}
	if got := payloads(o.drainAll()); got != "abc" {
		t.Errorf("drain: got %q, want abc", got)
	}
	if o.drainAll() != nil {
		t.Error("second drain should be empty")
	}
}

func TestOutboxEvictsEventsBeforeRecords(t *testing.T) {
	o := newOutbox(3)
	o.push(bufferedMsg{topic: "log", payload: []byte("R"), qos: 1})
	o.push(bufferedMsg{topic: "events", payload: []byte("a")})
	o.push(bufferedMsg{topic: "events", payload: []byte("b")})

	if !o.push(bufferedMsg{topic: "log", payload: []byte("S"), qos: 1}) {
		t.Error("first eviction should be reported")
	}
	if o.push(bufferedMsg{topic: "events", payload: []byte("c")}) {
		t.Error("only the first eviction is reported")
	}
	if got := payloads(o.drainAll()); got != "RSc" {
		t.Errorf("drain: got %q, want RSc", got)
	}
}

func TestOutboxEvictsOldestWhenAllNeedDelivery(t *testing.T) {
	o := newOutbox(2)
	for _, p := range []string{"1", "2", "3"} {
		o.push(bufferedMsg{topic: "log", payload: []byte(p), qos: 1})
	}
	if got := payloads(o.drainAll()); got != "23" {
		t.Errorf("drain: got %q, want 23", got)
	}
}

func TestOutboxRetainedSupersedes(t *testing.T) {
	o := newOutbox(4)
	o.push(bufferedMsg{topic: "system", payload: []byte("H1"), qos: 1, retained: true})
	o.push(bufferedMsg{topic: "log", payload: []byte("R"), qos: 1})
	o.push(bufferedMsg{topic: "system", payload: []byte("H2"), qos: 1, retained: true})
	o.push(bufferedMsg{topic: "system", payload: []byte("X"), qos: 1})

	if got := payloads(o.drainAll()); got != "RH2X" {
		t.Errorf("drain: got %q, want RH2X", got)
	}
}

func TestOutboxDrainResetsEvictionReport(t *testing.T) {
	o := newOutbox(1)
	o.push(bufferedMsg{topic: "events"})
	if !o.push(bufferedMsg{topic: "events"}) {
		t.Error("expected eviction report")
	}
	o.drainAll()
	o.push(bufferedMsg{topic: "events"})
	if !o.push(bufferedMsg{topic: "events"}) {
		t.Error("eviction should be reported again after a drain")
	}
}

func TestOutboxMinimumCapacity(t *testing.T) {
	o := newOutbox(0)
	o.push(bufferedMsg{topic: "events", payload: []byte("a")})
	o.push(bufferedMsg{topic: "events", payload: []byte("b")})
	if got := payloads(o.drainAll()); got != "b" {
		t.Errorf("drain: got %q, want b", got)
	}
}
