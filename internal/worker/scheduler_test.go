package worker

import (
	"sync/atomic"
	"testing"
	"time"
)

// blockingWorker runs until its stop channel closes, counting transitions.
type blockingWorker struct {
	started atomic.Int32
	stopped atomic.Int32
	done    chan struct{}
}

func newBlockingWorker() *blockingWorker {
	return &blockingWorker{done: make(chan struct{})}
}

func (w *blockingWorker) Start() {
	w.started.Add(1)
	<-w.done
}

func (w *blockingWorker) Stop() {
	w.stopped.Add(1)
	close(w.done)
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := NewScheduler()
	workers := []*blockingWorker{newBlockingWorker(), newBlockingWorker()}
	for _, w := range workers {
		s.AddWorker(w)
	}

	s.Start()
	if !s.IsRunning() {
		t.Error("scheduler should report running after Start")
	}

	// Give the goroutines a moment to enter Start.
	deadline := time.After(time.Second)
	for _, w := range workers {
		for w.started.Load() == 0 {
			select {
			case <-deadline:
				t.Fatal("worker never started")
			case <-time.After(5 * time.Millisecond):
			}
		}
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler should report stopped after Stop")
	}
	for i, w := range workers {
		if w.stopped.Load() != 1 {
			t.Errorf("worker %d stopped %d times, want 1", i, w.stopped.Load())
		}
	}
}

func TestScheduler_StartAfterStopIsNoop(t *testing.T) {
	s := NewScheduler()
	w := newBlockingWorker()
	s.AddWorker(w)

	s.Stop()
	s.Start()

	time.Sleep(20 * time.Millisecond)
	if w.started.Load() != 0 {
		t.Error("worker should not start on a stopped scheduler")
	}
}
