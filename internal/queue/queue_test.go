package queue

import "testing"

func TestSendTryNextFIFO(t *testing.T) {
	q := New(4)

	for i := SilkID(0); i < 4; i++ {
		if !q.Send(Message{Target: i, Code: MsgStart}) {
			t.Fatalf("Send(%d) unexpectedly failed", i)
		}
	}

	if !q.IsFull() {
		t.Fatalf("expected queue to be full")
	}
	if ok := q.Send(Message{Target: 99, Code: MsgStart}); ok {
		t.Fatalf("Send on full queue should fail")
	}

	for i := SilkID(0); i < 4; i++ {
		msg, ok := q.TryNext()
		if !ok {
			t.Fatalf("TryNext() returned empty unexpectedly at i=%d", i)
		}
		if msg.Target != i {
			t.Errorf("FIFO violated: expected target %d, got %d", i, msg.Target)
		}
	}

	if !q.IsEmpty() {
		t.Fatalf("expected queue to be empty after draining")
	}
	if _, ok := q.TryNext(); ok {
		t.Fatalf("TryNext on empty queue should return false")
	}
}

func TestQueueWrapsAroundRingBuffer(t *testing.T) {
	q := New(2)

	q.Send(Message{Target: 1})
	q.TryNext()
	q.Send(Message{Target: 2})
	q.Send(Message{Target: 3})

	if !q.IsFull() {
		t.Fatalf("expected full after wraparound fill")
	}

	msg, _ := q.TryNext()
	if msg.Target != 2 {
		t.Errorf("expected target 2 after wraparound, got %d", msg.Target)
	}
	msg, _ = q.TryNext()
	if msg.Target != 3 {
		t.Errorf("expected target 3 after wraparound, got %d", msg.Target)
	}
}

func TestQueueFullDefaultCapacity(t *testing.T) {
	const capacity = 8192
	q := New(capacity)

	for i := 0; i < capacity; i++ {
		if !q.Send(Message{Target: SilkID(i % 65536), Code: MsgStart}) {
			t.Fatalf("Send #%d unexpectedly failed before reaching capacity", i)
		}
	}
	if q.Send(Message{Target: 0, Code: MsgStart}) {
		t.Fatalf("Send #%d should have returned Q_FULL", capacity)
	}

	if _, ok := q.TryNext(); !ok {
		t.Fatalf("expected to drain one message")
	}
	if !q.Send(Message{Target: 0, Code: MsgStart}) {
		t.Fatalf("expected one further Send to succeed after draining one slot")
	}
}

func TestSizeTracksCount(t *testing.T) {
	q := New(10)
	if q.Size() != 0 {
		t.Fatalf("expected initial size 0, got %d", q.Size())
	}
	q.Send(Message{Target: 1})
	q.Send(Message{Target: 2})
	if q.Size() != 2 {
		t.Fatalf("expected size 2, got %d", q.Size())
	}
	q.TryNext()
	if q.Size() != 1 {
		t.Fatalf("expected size 1 after one TryNext, got %d", q.Size())
	}
}
