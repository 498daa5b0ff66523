package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawPantry/internal/pkg/env"
)

// Flusher drains buffered counters into the database.
type Flusher interface {
	Flush(ctx context.Context) error
}

// ManagerConfig holds the background intervals.
type ManagerConfig struct {
	Workers              int
	BillingSweepInterval time.Duration
	CounterFlushInterval time.Duration
}

// LoadManagerConfigFromEnv reads UNLIMITED_BILLING_* variables.
func LoadManagerConfigFromEnv() ManagerConfig {
	return ManagerConfig{
		Workers:              env.GetEnvInt("UNLIMITED_BILLING_WORKERS", 3),
		BillingSweepInterval: env.GetEnvDuration("UNLIMITED_BILLING_SWEEP_INTERVAL", 15*time.Minute),
		CounterFlushInterval: env.GetEnvDuration("UNLIMITED_COUNTER_FLUSH_INTERVAL", 5*time.Second),
	}
}

// Manager manages the job queue and background tasks
type Manager struct {
	queue              *Queue
	billing            *BillingProcessor
	counters           Flusher
	cfg                ManagerConfig
	billingTicker      *time.Ticker
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerMu     sync.Mutex
)

// NewManager wires the queue, the billing processor and the counter flusher.
// counters may be nil.
func NewManager(q *Queue, bp *BillingProcessor, counters Flusher, cfg ManagerConfig) *Manager {
	if cfg.BillingSweepInterval <= 0 {
		cfg.BillingSweepInterval = 15 * time.Minute
	}
	if cfg.CounterFlushInterval <= 0 {
		cfg.CounterFlushInterval = 5 * time.Second
	}
	return &Manager{
		queue:    q,
		billing:  bp,
		counters: counters,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
}

// SetManager registers the process wide manager
func SetManager(m *Manager) {
	managerMu.Lock()
	defer managerMu.Unlock()
	globalManager = m
}

// GetManager returns the process wide manager, nil before SetManager
func GetManager() *Manager {
	managerMu.Lock()
	defer managerMu.Unlock()
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.billingTicker = time.NewTicker(m.cfg.BillingSweepInterval)
	m.wg.Add(1)
	go m.billingWorker(m.stopCh)

	if m.counters != nil {
		m.counterFlushTicker = time.NewTicker(m.cfg.CounterFlushInterval)
		m.wg.Add(1)
		go m.counterFlushWorker(m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.billingTicker != nil {
		m.billingTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Flush whatever the counters still hold
	if m.counters != nil {
		if err := m.counters.Flush(context.Background()); err != nil {
			log.Errorf("[JobQueue Manager] Final counter flush error: %v", err)
		}
	}

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// billingWorker periodically enqueues billing jobs for due plans
func (m *Manager) billingWorker(stopCh chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started billing sweep (interval: %s)", m.cfg.BillingSweepInterval)

	// sweep once right away so a restart does not wait a full interval
	m.RunBillingSweepOnce()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Billing sweep stopping")
			return
		case <-m.billingTicker.C:
			m.RunBillingSweepOnce()
		}
	}
}

// counterFlushWorker periodically flushes counters from Redis to DB
func (m *Manager) counterFlushWorker(stopCh chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := m.counters.Flush(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// RunBillingSweepOnce exposes a manual trigger for a single billing sweep.
func (m *Manager) RunBillingSweepOnce() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := m.billing.EnqueueDue(ctx)
	if err != nil {
		log.Errorf("[JobQueue Manager] Billing sweep error: %v", err)
	}
	return n
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
