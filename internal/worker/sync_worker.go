package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rainsync/internal/service"
)

// syncTimeout bounds one full sync cycle.
const syncTimeout = 10 * time.Minute

// SyncWorker runs the sync pipeline on a cron schedule, with an immediate
// run on startup so a fresh deployment does not wait for the next tick.
type SyncWorker struct {
	service  service.SyncService
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewSyncWorker(service service.SyncService, schedule string) *SyncWorker {
	return &SyncWorker{
		service:  service,
		schedule: schedule,
	}
}

func (w *SyncWorker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	log.Printf("Sync Worker started (schedule: %q)", w.schedule)

	w.runSync()

	c := cron.New()
	if _, err := c.AddFunc(w.schedule, w.runSync); err != nil {
		log.Printf("Sync Worker: invalid cron schedule %q: %v", w.schedule, err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		// Stopped while the initial sync was running.
		return
	}
	w.cron = c
	c.Start()
}

func (w *SyncWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.cron != nil {
		w.cron.Stop()
	}
	w.running = false
	log.Println("Sync Worker stopped")
}

func (w *SyncWorker) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	run, err := w.service.SyncAll(ctx)
	if err != nil {
		log.Printf("Sync Worker error: %v", err)
		return
	}
	log.Printf("Sync Worker: run complete (%d/%d sensors, %d rows)",
		run.SensorsOK, run.SensorsTotal, run.RowsUpserted)
}
