package queue

import (
	"sync"
	"testing"
	"time"
)

// TestBasicOperations verifies single-producer FIFO delivery
func TestBasicOperations(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	values := []int{1, 2, 3, 4, 5}
	for i := range values {
		if !q.Push(&values[i]) {
			t.Fatalf("push of %d failed", values[i])
		}
	}

	for _, want := range values {
		select {
		case got := <-q.Recv():
			if *got != want {
				t.Errorf("expected %d, got %d", want, *got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d", want)
		}
	}
}

// TestNilAndClosedPush verifies that nil items and pushes after close are
// rejected
func TestNilAndClosedPush(t *testing.T) {
	q := NewMPSC[int]()

	if q.Push(nil) {
		t.Error("nil push should be rejected")
	}

	q.Close()
	if !q.IsClosed() {
		t.Error("queue should report closed")
	}

	v := 42
	if q.Push(&v) {
		t.Error("push after close should be rejected")
	}
}

// TestDrainAfterClose verifies that items queued before close are still
// delivered and that the channel then closes
func TestDrainAfterClose(t *testing.T) {
	q := NewMPSC[int]()

	values := []int{10, 20, 30}
	for i := range values {
		q.Push(&values[i])
	}
	q.Close()

	for _, want := range values {
		select {
		case got, ok := <-q.Recv():
			if !ok {
				t.Fatalf("channel closed before %d was delivered", want)
			}
			if *got != want {
				t.Errorf("expected %d, got %d", want, *got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d", want)
		}
	}

	select {
	case _, ok := <-q.Recv():
		if ok {
			t.Error("expected closed channel after drain")
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after drain")
	}
}

// TestConcurrentProducers verifies that no items are lost or duplicated
// under concurrent pushes
func TestConcurrentProducers(t *testing.T) {
	const (
		producers       = 8
		perProducer     = 500
		totalItemsCount = producers * perProducer
	)

	q := NewMPSC[int]()

	received := make(map[int]bool, totalItemsCount)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range q.Recv() {
			if received[*v] {
				t.Errorf("duplicate item %d", *v)
			}
			received[*v] = true
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := base + i
				if !q.Push(&v) {
					t.Errorf("push of %d failed", v)
				}
			}
		}(p * perProducer)
	}

	wg.Wait()
	q.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish")
	}

	if len(received) != totalItemsCount {
		t.Errorf("expected %d items, got %d", totalItemsCount, len(received))
	}
}

// TestPerProducerOrder verifies that items from a single producer arrive
// in push order even when other producers interleave
func TestPerProducerOrder(t *testing.T) {
	const (
		producers   = 4
		perProducer = 200
	)

	q := NewMPSC[[2]int]()

	lastSeen := make([]int, producers)
	for i := range lastSeen {
		lastSeen[i] = -1
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range q.Recv() {
			producer, seq := v[0], v[1]
			if seq <= lastSeen[producer] {
				t.Errorf("producer %d: sequence %d arrived after %d", producer, seq, lastSeen[producer])
			}
			lastSeen[producer] = seq
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				item := [2]int{producer, i}
				q.Push(&item)
			}
		}(p)
	}

	wg.Wait()
	q.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish")
	}
}

// TestLen verifies the depth counter
func TestLen(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	values := []int{1, 2, 3}
	for i := range values {
		q.Push(&values[i])
	}

	// The feeder may already hold one item at the channel handoff, so the
	// reported depth is at most the number pushed.
	if n := q.Len(); n > len(values) {
		t.Errorf("depth %d exceeds number of pushed items %d", n, len(values))
	}

	for range values {
		select {
		case <-q.Recv():
		case <-time.After(time.Second):
			t.Fatal("timed out draining")
		}
	}

	// Allow the feeder to finish its bookkeeping
	time.Sleep(50 * time.Millisecond)
	if n := q.Len(); n != 0 {
		t.Errorf("expected depth 0 after drain, got %d", n)
	}
}
