package services

import (
	"sync"
	"testing"
)

func TestTrackerCapacity(t *testing.T) {
	tracker := NewActiveAgentTracker(2)

	if !tracker.TryAcquire() || !tracker.TryAcquire() {
		t.Fatal("could not fill tracker to capacity")
	}
	if tracker.TryAcquire() {
		t.Fatal("acquire succeeded past capacity")
	}
	if tracker.Active() != 2 {
		t.Fatalf("active = %d, want 2", tracker.Active())
	}

	tracker.Release()
	if tracker.Active() != 1 {
		t.Fatalf("active after release = %d, want 1", tracker.Active())
	}
	if !tracker.TryAcquire() {
		t.Fatal("acquire failed with a free slot")
	}
}

func TestTrackerReleaseNeverGoesNegative(t *testing.T) {
	tracker := NewActiveAgentTracker(1)
	tracker.Release()
	tracker.Release()
	if tracker.Active() != 0 {
		t.Fatalf("active = %d, want 0", tracker.Active())
	}
	if !tracker.TryAcquire() {
		t.Fatal("spurious releases corrupted the counter")
	}
}

// Hammer the tracker from many goroutines: the count must never exceed the
// limit and must return to zero once every acquirer has released.
func TestTrackerConcurrentAcquireRelease(t *testing.T) {
	const limit = 4
	const goroutines = 32
	const rounds = 200

	tracker := NewActiveAgentTracker(limit)
	var acquired, overLimit int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if tracker.TryAcquire() {
					active := tracker.Active()
					mu.Lock()
					acquired++
					if active > limit {
						overLimit++
					}
					mu.Unlock()
					tracker.Release()
				}
			}
		}()
	}
	wg.Wait()

	if overLimit > 0 {
		t.Errorf("observed %d states over the limit", overLimit)
	}
	if acquired == 0 {
		t.Error("no goroutine ever acquired a slot")
	}
	if tracker.Active() != 0 {
		t.Errorf("active after drain = %d, want 0", tracker.Active())
	}
}
