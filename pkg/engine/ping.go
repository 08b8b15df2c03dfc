package engine

import (
	"time"

	"github.com/marcus-ai/marcus/pkg/domain/agent"
	"github.com/marcus-ai/marcus/pkg/lease"
)

var processStart = time.Now()

// PingReport is the ping tool's result payload: a liveness check plus lease
// statistics, supplemented from original_source/'s ping/lease-statistics
// tool.
type PingReport struct {
	UptimeSeconds float64          `json:"uptime_seconds"`
	Leases        lease.Statistics `json:"leases"`
}

// Ping implements the ping tool.
func (e *Engine) Ping() PingReport {
	return PingReport{
		UptimeSeconds: time.Since(processStart).Seconds(),
		Leases:        e.lm.Statistics(),
	}
}

// ListRegisteredAgents implements the list_registered_agents tool: a
// convenience surface over AR's registry snapshot.
func (e *Engine) ListRegisteredAgents() []*agent.Agent {
	return e.ar.All()
}
