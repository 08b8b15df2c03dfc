// Package monitor implements the two cooperating background loops of
// spec.md §4.6 (MON): the lease monitor, which reclaims expired leases,
// and the assignment monitor, which reconciles AP against kanban.
// Grounded on the teacher's orchestration.Orchestrator.RunLeaseWatcher
// (time.Ticker-driven background goroutine launched at startup, joined
// on shutdown via context cancellation) plus CleanupExpiredLeases'
// skip-if-still-running backpressure shape, generalized to call through
// the engine's own mutation APIs rather than mutating monitor-local state
// directly (spec.md §4.6: "Monitors never block AE; they operate on
// snapshots and commit through the same mutation APIs").
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"

	"github.com/marcus-ai/marcus/pkg/apstore"
	"github.com/marcus-ai/marcus/pkg/config"
	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/engine"
	"github.com/marcus-ai/marcus/pkg/lease"
	"github.com/marcus-ai/marcus/pkg/logger"
	"github.com/marcus-ai/marcus/pkg/taskstore"
)

// Monitor owns the two background loops plus the cron-scheduled
// board-health sweep.
type Monitor struct {
	eng *engine.Engine
	lm  *lease.Manager
	ap  *apstore.Store
	ts  *taskstore.Store
	bus domain.EventBus
	log *logger.Logger
	cfg config.MonitorConfig

	leaseRunning  atomic.Bool
	assignRunning atomic.Bool
	gron          gronx.Gronx
}

// New constructs a Monitor. It does not start any goroutines until Run is
// called — the composition root owns the lifetime.
func New(eng *engine.Engine, lm *lease.Manager, ap *apstore.Store, ts *taskstore.Store, bus domain.EventBus, log *logger.Logger, cfg config.MonitorConfig) *Monitor {
	return &Monitor{eng: eng, lm: lm, ap: ap, ts: ts, bus: bus, log: log, cfg: cfg, gron: gronx.New()}
}

// Run starts the lease monitor, assignment monitor, and board-health cron
// sweep as goroutines, returning immediately. All three goroutines exit
// when ctx is cancelled; Run returns no handle to wait for them, so
// cancellation is the only shutdown signal.
func (m *Monitor) Run(ctx context.Context) {
	interval := time.Duration(m.cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 450 * time.Second
	}
	go m.runLeaseMonitor(ctx, interval)
	go m.runAssignmentMonitor(ctx, interval)
	go m.runBoardHealthCron(ctx)
}

func (m *Monitor) runLeaseMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.leaseRunning.CompareAndSwap(false, true) {
				continue // previous tick still running; skip (spec.md §5 backpressure)
			}
			m.reclaimExpiredLeases(ctx)
			m.leaseRunning.Store(false)
		}
	}
}

func (m *Monitor) reclaimExpiredLeases(ctx context.Context) {
	now := time.Now().UTC()
	for _, l := range m.lm.Expired(now) {
		if err := m.eng.UnassignTask(ctx, l.TaskID, l.AgentID); err != nil {
			m.log.WarnCF("monitor", "lease reclaim failed", logger.Fields{
				"task_id": l.TaskID, "agent_id": l.AgentID, "error": err.Error(),
			})
			continue
		}
		m.log.InfoCF("monitor", "reclaimed expired lease", logger.Fields{
			"task_id": l.TaskID, "agent_id": l.AgentID, "renewal_count": l.RenewalCount,
		})
		if m.bus != nil {
			m.bus.Publish(domain.NewEvent(domain.EventReclaimed, domain.EntityID(l.TaskID), map[string]string{
				"agent_id": l.AgentID,
			}))
		}
	}
}

func (m *Monitor) runAssignmentMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.assignRunning.CompareAndSwap(false, true) {
				continue
			}
			m.reconcile(ctx)
			m.assignRunning.Store(false)
		}
	}
}

// reconcile implements spec.md §4.6's assignment monitor: any task marked
// IN_PROGRESS in kanban without an AP entry is flagged; any AP entry
// whose kanban task is DONE is cleaned up.
func (m *Monitor) reconcile(ctx context.Context) {
	if err := m.ts.Refresh(ctx); err != nil {
		m.log.WarnCF("monitor", "reconciliation refresh failed", logger.Fields{"error": err.Error()})
		return
	}

	assignedTaskIDs := m.ap.GetAllAssignedTaskIDs()
	flagged := 0
	for _, t := range m.ts.All() {
		if t.Status == domain.TaskInProgress && !assignedTaskIDs[string(t.ID())] {
			flagged++
			m.log.WarnCF("monitor", "in-progress task has no AP record", logger.Fields{
				"task_id": string(t.ID()), "assigned_to": t.AssignedTo,
			})
		}
	}

	cleaned := 0
	for _, rec := range m.ap.All() {
		t, ok := m.ts.Get(rec.TaskID)
		if ok && t.Status == domain.TaskDone {
			if err := m.ap.Remove(rec.AgentID); err == nil {
				cleaned++
			}
		}
	}

	if flagged > 0 || cleaned > 0 {
		m.log.InfoCF("monitor", "reconciliation pass complete", logger.Fields{"flagged": flagged, "cleaned": cleaned})
	}
	if m.bus != nil {
		m.bus.Publish(domain.NewEvent(domain.EventReconciliation, domain.EntityID(""), map[string]int{
			"flagged": flagged, "cleaned": cleaned,
		}))
	}
}

// runBoardHealthCron evaluates the configured cron expression once per
// minute and runs a board-health sweep whenever it is due, using gronx
// rather than a fixed ticker so the schedule can be arbitrary (not just a
// fixed interval).
func (m *Monitor) runBoardHealthCron(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	expr := m.cfg.BoardHealthCron
	if expr == "" {
		expr = "*/5 * * * *"
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := m.gron.IsDue(expr)
			if err != nil {
				m.log.WarnCF("monitor", "invalid board-health cron expression", logger.Fields{"expr": expr, "error": err.Error()})
				return
			}
			if !due {
				continue
			}
			report := m.eng.ScanBoardHealth()
			if len(report.Cycles) > 0 || len(report.OrphanedSubtasks) > 0 || len(report.ParentsMissingStatus) > 0 {
				m.log.WarnCF("monitor", "board health issues detected", logger.Fields{
					"cycles": len(report.Cycles), "orphaned_subtasks": len(report.OrphanedSubtasks),
					"parents_missing_status": len(report.ParentsMissingStatus),
				})
			}
			if m.bus != nil {
				m.bus.Publish(domain.NewEvent(domain.EventBoardHealthScan, domain.EntityID(""), report))
			}
		}
	}
}
