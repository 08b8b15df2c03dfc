// Package app provides the composition root: it constructs every
// component of the TS/AP/LM/AR/AE/MON split and wires them together.
// Grounded on the teacher's Container pattern (explicit-dependency
// struct, single constructor, no package-level singletons), with the
// bounded-context repositories replaced by Marcus's own component set.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marcus-ai/marcus/pkg/aiengine"
	"github.com/marcus-ai/marcus/pkg/apperr"
	"github.com/marcus-ai/marcus/pkg/apstore"
	"github.com/marcus-ai/marcus/pkg/config"
	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/engine"
	"github.com/marcus-ai/marcus/pkg/infrastructure/eventbus"
	"github.com/marcus-ai/marcus/pkg/kanban"
	"github.com/marcus-ai/marcus/pkg/lease"
	"github.com/marcus-ai/marcus/pkg/logger"
	"github.com/marcus-ai/marcus/pkg/monitor"
	"github.com/marcus-ai/marcus/pkg/registry"
	"github.com/marcus-ai/marcus/pkg/taskstore"
)

// ShutdownGracePeriod bounds how long cmd/marcusd waits for in-flight tool
// calls to finish before forcing the transport closed.
const ShutdownGracePeriod = 10 * time.Second

// Container holds every wired component. It acts as the single composition
// root for dependency injection — no component anywhere in the module
// reaches for a package-level singleton (spec.md §9).
type Container struct {
	Config *config.Config
	Log    *logger.Logger

	EventBus domain.EventBus
	Kanban   kanban.Provider
	AI       aiengine.Engine

	TaskStore *taskstore.Store
	APStore   *apstore.Store
	Lease     *lease.Manager
	Registry  *registry.Registry
	Engine    *engine.Engine
	Monitor   *monitor.Monitor
}

// New builds a fully wired Container from configuration. Construction
// order follows the dependency order TS -> AP -> LM -> AR -> AE -> MON
// spec.md §4 lists the components in. apDir is the directory Assignment
// Persistence keeps its durable records in.
func New(cfg *config.Config, apDir string) (*Container, error) {
	var logOut io.Writer // nil: logger writes to stdout
	if cfg.Log.Path != "" {
		f, err := os.OpenFile(cfg.Log.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, apperr.Wrap(apperr.ConfigurationError, "opening log file", err)
		}
		logOut = f
	}
	log := logger.New(logOut, logger.Level(cfg.Log.Level))
	logger.SetDefault(log)

	kb, err := newKanbanProvider(cfg.Kanban)
	if err != nil {
		return nil, err
	}

	ai := aiengine.New(cfg.AI)
	bus := eventbus.New()

	ts := taskstore.New(kb, log)

	ap, err := apstore.Open(apDir, log)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigurationError, "opening assignment store", err)
	}

	lm := lease.New(cfg.TaskLease)
	ar := registry.New()

	ae := engine.New(ts, ap, lm, ar, kb, ai, bus, log, cfg)
	mon := monitor.New(ae, lm, ap, ts, bus, log, cfg.Monitor)

	return &Container{
		Config:    cfg,
		Log:       log,
		EventBus:  bus,
		Kanban:    kb,
		AI:        ai,
		TaskStore: ts,
		APStore:   ap,
		Lease:     lm,
		Registry:  ar,
		Engine:    ae,
		Monitor:   mon,
	}, nil
}

func newKanbanProvider(cfg config.KanbanConfig) (kanban.Provider, error) {
	switch cfg.Provider {
	case "github":
		if cfg.GitHubOwner == "" || cfg.GitHubRepo == "" {
			return nil, apperr.Configuration("kanban.github_owner and kanban.github_repo are required for the github provider")
		}
		return kanban.NewGitHubProvider(cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubToken), nil
	case "sqlite", "":
		path := cfg.SQLitePath
		if path == "" {
			path = "marcus.db"
		}
		provider, err := kanban.OpenSQLite(path)
		if err != nil {
			return nil, apperr.Wrap(apperr.ConfigurationError, "opening sqlite kanban provider", err)
		}
		return provider, nil
	default:
		return nil, apperr.Configuration(fmt.Sprintf("unknown kanban provider %q", cfg.Provider))
	}
}

// Start loads the initial task snapshot and launches the MON background
// loops. Callers run this once during daemon startup, after New.
func (c *Container) Start(ctx context.Context) error {
	if err := c.TaskStore.Refresh(ctx); err != nil {
		return err
	}
	c.Monitor.Run(ctx)
	c.Log.InfoCF("app", "marcus started", logger.Fields{
		"kanban_provider": c.Config.Kanban.Provider,
		"ai_provider":     c.Config.AI.Provider,
		"transport_mode":  c.Config.Transport.Mode,
	})
	return nil
}
