// Package ether provides correctness tests for the ring transport: layout,
// attach validation, ordered delivery, lap overrun, and multi-producer
// serialization.
package ether

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"main/types"
)

type msgA struct {
	X uint64
	_ [24]byte
}

type msgB struct {
	Y uint64
}

func testSchema(t *testing.T) *types.Schema {
	t.Helper()
	return types.MustSchema(types.DescOf[msgA]("msgA"), types.DescOf[msgB]("msgB"))
}

func newRing(t *testing.T, capacity int) (*Ether, Ref[msgA], Ref[msgB]) {
	t.Helper()
	s := testSchema(t)
	e := New("TestEther", s, capacity)
	if err := e.Initialize(PrivateRegion(e.RequiredMemSize()), true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e, types.MustRef[msgA](s, "msgA"), types.MustRef[msgB](s, "msgB")
}

func publishA(c *Cursor, ref Ref[msgA], x uint64) {
	m := Alloc(c, ref)
	m.X = x
	Commit(c, ref, m)
}

func publishB(c *Cursor, ref Ref[msgB], y uint64) {
	m := Alloc(c, ref)
	m.Y = y
	Commit(c, ref, m)
}

// delivered drains one message and reports (ordinal, payload word, rc).
func delivered(c *Cursor, refA Ref[msgA], refB Ref[msgB]) (uint64, uint64, int) {
	var ord, val uint64
	rc := c.Read(func(s *Slot) {
		ord = s.Selector()
		switch ord {
		case refA.Ord:
			val = As(s, refA).X
		case refB.Ord:
			val = As(s, refB).Y
		}
	})
	return ord, val, rc
}

// -----------------------------------------------------------------------------
// ░░ Layout & Attach ░░
// -----------------------------------------------------------------------------

func TestRequiredMemSize(t *testing.T) {
	s := testSchema(t)
	e := New("TestEther", s, 16)
	// header line + 16 slots of (preamble line + one data line)
	want := 64 + 16*(64+64)
	if e.RequiredMemSize() != want {
		t.Fatalf("RequiredMemSize = %d, want %d", e.RequiredMemSize(), want)
	}
}

func TestInitializeRejectsShortRegion(t *testing.T) {
	e := New("TestEther", testSchema(t), 16)
	if err := e.Initialize(PrivateRegion(e.RequiredMemSize()-1), true); err == nil {
		t.Fatal("short region must be rejected")
	}
}

func TestAttachValidatesSignature(t *testing.T) {
	s := testSchema(t)
	e := New("TestEther", s, 16)
	region := PrivateRegion(e.RequiredMemSize())
	if err := e.Initialize(region, true); err != nil {
		t.Fatalf("reset Initialize: %v", err)
	}

	// same declaration attaches cleanly without reset
	same := New("TestEther", testSchema(t), 16)
	if err := same.Initialize(region, false); err != nil {
		t.Fatalf("matching attach failed: %v", err)
	}

	// a reordered type list must be turned away
	other := types.MustSchema(types.DescOf[msgB]("msgB"), types.DescOf[msgA]("msgA"))
	bad := New("TestEther", other, 16)
	if err := bad.Initialize(region, false); err == nil {
		t.Fatal("signature mismatch must fail the attach")
	}
}

func TestAttachValidatesCapacity(t *testing.T) {
	e := New("TestEther", testSchema(t), 32)
	region := PrivateRegion(e.RequiredMemSize())
	if err := e.Initialize(region, true); err != nil {
		t.Fatalf("reset Initialize: %v", err)
	}
	smaller := New("TestEther", testSchema(t), 16)
	if err := smaller.Initialize(region, false); err == nil {
		t.Fatal("capacity mismatch must fail the attach")
	}
}

func TestSlotPreambleIsOneCacheLine(t *testing.T) {
	if unsafe.Sizeof(Slot{}) != 64 {
		t.Fatalf("slot preamble = %d bytes, want 64", unsafe.Sizeof(Slot{}))
	}
}

// -----------------------------------------------------------------------------
// ░░ Single-Producer / Single-Consumer Round-Trip ░░
// -----------------------------------------------------------------------------

func TestRoundTripInOrder(t *testing.T) {
	e, refA, refB := newRing(t, 16)
	prod := e.NewCursor()
	cons := e.NewCursor()

	publishA(prod, refA, 1)
	publishB(prod, refB, 2)
	publishA(prod, refA, 3)

	wantOrd := []uint64{refA.Ord, refB.Ord, refA.Ord}
	wantVal := []uint64{1, 2, 3}
	for i := range wantOrd {
		ord, val, rc := delivered(cons, refA, refB)
		if rc != 1 {
			t.Fatalf("read %d rc = %d, want 1", i, rc)
		}
		if ord != wantOrd[i] || val != wantVal[i] {
			t.Fatalf("read %d = (%d,%d), want (%d,%d)", i, ord, val, wantOrd[i], wantVal[i])
		}
	}
	if _, _, rc := delivered(cons, refA, refB); rc != 0 {
		t.Fatal("drained ring must report nothing ready")
	}
}

func TestCursorStartsAtCreationPoint(t *testing.T) {
	e, refA, refB := newRing(t, 16)
	prod := e.NewCursor()

	publishA(prod, refA, 1)
	mid := e.NewCursor() // opened between publications
	publishB(prod, refB, 2)
	publishA(prod, refA, 3)

	// mid sees only what was published after it was opened
	wantVal := []uint64{2, 3}
	for i, w := range wantVal {
		_, val, rc := delivered(mid, refA, refB)
		if rc != 1 || val != w {
			t.Fatalf("mid read %d = (%d, rc %d), want (%d, 1)", i, val, rc, w)
		}
	}
	if _, _, rc := delivered(mid, refA, refB); rc != 0 {
		t.Fatal("mid cursor must be drained")
	}

	late := e.NewCursor()
	if _, _, rc := delivered(late, refA, refB); rc != 0 {
		t.Fatal("cursor opened after the last publish must deliver nothing")
	}
}

func TestFullCapacityBurstDelivered(t *testing.T) {
	e, refA, _ := newRing(t, 16)
	cons := e.NewCursor()
	prod := e.NewCursor()

	for i := uint64(1); i <= 16; i++ {
		publishA(prod, refA, i)
	}
	for i := uint64(1); i <= 16; i++ {
		var got uint64
		rc := cons.Read(func(s *Slot) { got = As(s, refA).X })
		if rc != 1 || got != i {
			t.Fatalf("burst read %d = (%d, rc %d)", i, got, rc)
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Lap Overrun ░░
// -----------------------------------------------------------------------------

func TestLapOverrun(t *testing.T) {
	e, refA, _ := newRing(t, 8)
	cons := e.NewCursor()
	prod := e.NewCursor()

	for i := uint64(1); i <= 10; i++ {
		publishA(prod, refA, i)
	}
	if rc := cons.Read(func(*Slot) {}); rc != -1 {
		t.Fatalf("overrun read rc = %d, want -1", rc)
	}
}

func TestNoOverrunAtExactCapacity(t *testing.T) {
	e, refA, _ := newRing(t, 8)
	cons := e.NewCursor()
	prod := e.NewCursor()

	for i := uint64(1); i <= 8; i++ {
		publishA(prod, refA, i)
	}
	if rc := cons.Read(func(*Slot) {}); rc != 1 {
		t.Fatalf("read at exactly one lap behind rc = %d, want 1", rc)
	}
}

// -----------------------------------------------------------------------------
// ░░ Multi-Producer Total Order ░░
// -----------------------------------------------------------------------------

func TestTwoProducersInterleave(t *testing.T) {
	const perProducer = 100
	e, refA, _ := newRing(t, 256)
	cons := e.NewCursor()

	var wg sync.WaitGroup
	for tid := uint64(1); tid <= 2; tid++ {
		wg.Add(1)
		go func(tid uint64) {
			defer wg.Done()
			prod := e.NewCursor()
			for i := uint64(0); i < perProducer; i++ {
				// payload: producer id in the high bits, local index low
				publishA(prod, refA, tid<<32|i)
			}
		}(tid)
	}
	wg.Wait()

	var nextLocal [3]uint64
	for n := 1; n <= 2*perProducer; n++ {
		var got uint64
		rc := cons.Read(func(s *Slot) { got = As(s, refA).X })
		if rc != 1 {
			t.Fatalf("delivery %d rc = %d, want 1", n, rc)
		}
		tid := got >> 32
		local := got & 0xFFFFFFFF
		if tid != 1 && tid != 2 {
			t.Fatalf("delivery %d carries bad producer id %d", n, tid)
		}
		// each producer's stream must arrive in its own order
		if local != nextLocal[tid] {
			t.Fatalf("producer %d out of order: got %d, want %d", tid, local, nextLocal[tid])
		}
		nextLocal[tid]++
	}
	if nextLocal[1] != perProducer || nextLocal[2] != perProducer {
		t.Fatalf("per-producer counts = %d/%d, want %d each", nextLocal[1], nextLocal[2], perProducer)
	}
	if _, _, rc := delivered(cons, refA, types.MustRef[msgB](e.Schema(), "msgB")); rc != 0 {
		t.Fatal("ring must be drained after 200 deliveries")
	}
}

// -----------------------------------------------------------------------------
// ░░ Backpressure Metric ░░
// -----------------------------------------------------------------------------

func TestQueueLength(t *testing.T) {
	e, refA, _ := newRing(t, 16)
	cons := e.NewCursor()
	prod := e.NewCursor()

	if cons.QueueLength() != 0 {
		t.Fatalf("fresh QueueLength = %d, want 0", cons.QueueLength())
	}
	for i := uint64(1); i <= 5; i++ {
		publishA(prod, refA, i)
	}
	if cons.QueueLength() != 5 {
		t.Fatalf("QueueLength = %d, want 5", cons.QueueLength())
	}
	cons.Read(func(*Slot) {})
	if cons.QueueLength() != 4 {
		t.Fatalf("QueueLength after one read = %d, want 4", cons.QueueLength())
	}
}

// -----------------------------------------------------------------------------
// ░░ Concurrent Producer/Consumer Stream ░░
// -----------------------------------------------------------------------------

func TestConcurrentStreamNoGapsNoDupes(t *testing.T) {
	const total = 5000
	e, refA, _ := newRing(t, 1024)
	cons := e.NewCursor()

	var consumed atomic.Uint64
	go func() {
		prod := e.NewCursor()
		for i := uint64(1); i <= total; i++ {
			// stay well inside one lap of the reader
			for i-consumed.Load() > 512 {
				runtime.Gosched()
			}
			publishA(prod, refA, i)
		}
	}()

	next := uint64(1)
	for next <= total {
		var got uint64
		rc := cons.Read(func(s *Slot) { got = As(s, refA).X })
		switch rc {
		case 1:
			if got != next {
				t.Fatalf("delivered %d, want %d", got, next)
			}
			next++
			consumed.Store(got)
		case 0:
			// producer not there yet
		case -1:
			t.Fatal("unexpected lap overrun")
		}
	}
}
