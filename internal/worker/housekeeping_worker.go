package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"rainsync/internal/repository"
)

// HousekeepingWorker prunes old sync run summaries on a fixed interval.
// Rainfall readings themselves are never deleted.
type HousekeepingWorker struct {
	runRepo   repository.RunRepository
	interval  time.Duration
	retention time.Duration
	stopChan  chan struct{}

	mu      sync.Mutex
	running bool
}

func NewHousekeepingWorker(runRepo repository.RunRepository, interval, retention time.Duration) *HousekeepingWorker {
	return &HousekeepingWorker{
		runRepo:   runRepo,
		interval:  interval,
		retention: retention,
		stopChan:  make(chan struct{}),
	}
}

func (w *HousekeepingWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true
	log.Printf("Housekeeping Worker started (interval %v, retention %v)", w.interval, w.retention)

	go w.run()
}

func (w *HousekeepingWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopChan)
	w.running = false
	log.Println("Housekeeping Worker stopped")
}

func (w *HousekeepingWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.prune()
		case <-w.stopChan:
			return
		}
	}
}

func (w *HousekeepingWorker) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-w.retention)
	if err := w.runRepo.DeleteOld(ctx, cutoff); err != nil {
		log.Printf("Housekeeping Worker error: %v", err)
	} else {
		log.Printf("Housekeeping Worker: pruned runs older than %s", cutoff.Format(time.RFC3339))
	}
}
