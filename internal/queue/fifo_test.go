package queue_test

import (
	"sync"
	"testing"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/queue"
)

func TestFIFO_Order(t *testing.T) {
	q := queue.NewFIFO[domain.AnnounceJob]()

	for i := int64(1); i <= 5; i++ {
		q.Push(domain.AnnounceJob{PollID: i})
	}

	for i := int64(1); i <= 5; i++ {
		job, ok := q.TryPop()
		if !ok {
			t.Fatalf("expected item %d, queue empty", i)
		}
		if job.PollID != i {
			t.Fatalf("expected poll %d, got %d", i, job.PollID)
		}
	}
}

func TestFIFO_TryPopEmpty(t *testing.T) {
	q := queue.NewFIFO[domain.SendJob]()

	if _, ok := q.TryPop(); ok {
		t.Fatal("expected TryPop on empty queue to return ok=false")
	}
	if q.Len() != 0 {
		t.Fatalf("expected len 0, got %d", q.Len())
	}
}

func TestFIFO_Len(t *testing.T) {
	q := queue.NewFIFO[domain.AnnounceJob]()

	q.Push(domain.AnnounceJob{PollID: 1})
	q.Push(domain.AnnounceJob{PollID: 2})
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}

	q.TryPop()
	if q.Len() != 1 {
		t.Fatalf("expected len 1 after pop, got %d", q.Len())
	}
}

// TestFIFO_ConcurrentPushPop verifies there are no races and no lost items
// when multiple goroutines push while a consumer drains.
func TestFIFO_ConcurrentPushPop(t *testing.T) {
	q := queue.NewFIFO[domain.SendJob]()

	const producers = 5
	const itemsPerProducer = 200
	const total = producers * itemsPerProducer

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for j := 0; j < itemsPerProducer; j++ {
				q.Push(domain.SendJob{RecipientID: base})
			}
		}(int64(i))
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < total {
			if _, ok := q.TryPop(); ok {
				received++
			}
		}
	}()

	wg.Wait()
	<-done

	if q.Len() != 0 {
		t.Fatalf("expected empty queue after draining, len=%d", q.Len())
	}
}
