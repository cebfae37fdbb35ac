package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/ManuelReschke/DocuChat/internal/pkg/billing"
	"github.com/ManuelReschke/DocuChat/internal/pkg/metrics"
)

const (
	DefaultAuditSchedule = "@every 15m"
	defaultAuditTimeout  = 2 * time.Minute
)

// Auditor compares cached user billing state with the ledger
type Auditor interface {
	Audit(ctx context.Context) ([]billing.Drift, error)
}

// AuditReport is the outcome of the last audit run
type AuditReport struct {
	RanAt  time.Time       `json:"ranAt"`
	Took   time.Duration   `json:"took"`
	Drifts []billing.Drift `json:"drifts"`
	Error  string          `json:"error,omitempty"`
}

// Manager runs the periodic billing background tasks
type Manager struct {
	cron     *cron.Cron
	auditor  Auditor
	schedule string
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	last    *AuditReport
}

// NewManager creates a manager; an empty schedule uses DefaultAuditSchedule
func NewManager(auditor Auditor, schedule string) *Manager {
	if schedule == "" {
		schedule = DefaultAuditSchedule
	}
	return &Manager{
		auditor:  auditor,
		schedule: schedule,
		timeout:  defaultAuditTimeout,
	}
}

// Start schedules the audit. Overlapping runs are skipped.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(m.schedule, m.runScheduledAudit); err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", m.schedule, err)
	}

	m.cron = c
	m.cron.Start()
	m.running = true
	log.Infof("[JobQueue Manager] Billing audit scheduled (%s)", m.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running audit to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	c := m.cron
	m.running = false
	m.cron = nil
	m.mu.Unlock()

	log.Info("[JobQueue Manager] Stopping background tasks...")
	<-c.Stop().Done()
	log.Info("[JobQueue Manager] Stopped")
}

// IsRunning returns whether the scheduler is active
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runScheduledAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if _, err := m.RunAudit(ctx); err != nil {
		log.Errorf("[JobQueue Manager] billing audit failed: %v", err)
	}
}

// RunAudit runs one audit now. Drift is only reported.
func (m *Manager) RunAudit(ctx context.Context) (*AuditReport, error) {
	started := time.Now()
	drifts, err := m.auditor.Audit(ctx)

	report := &AuditReport{RanAt: started, Took: time.Since(started), Drifts: drifts}
	if err != nil {
		report.Error = err.Error()
	} else {
		metrics.SetProjectionDrift(len(drifts))
		if len(drifts) > 0 {
			log.Warnf("[JobQueue Manager] billing audit found %d drifting users", len(drifts))
		}
	}

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()

	return report, err
}

// LastAudit returns the most recent report or nil
func (m *Manager) LastAudit() *AuditReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
