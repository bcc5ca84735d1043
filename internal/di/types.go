// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/lvglgen/internal/database"
	"github.com/aristath/lvglgen/internal/events"
	"github.com/aristath/lvglgen/internal/generator"
	"github.com/aristath/lvglgen/internal/history"
	"github.com/aristath/lvglgen/internal/scheduler"
	"github.com/aristath/lvglgen/internal/widgets"
)

// Container holds all dependencies for the application. It is created by
// Wire and handed to the CLI commands and the HTTP server.
type Container struct {
	// Databases
	HistoryDB *database.DB // generation runs and their manifests

	// Repositories
	HistoryRepo *history.Repository

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Widget translators
	WidgetTypes *widgets.Registry
	Actions     *widgets.ActionRegistry

	// Services
	Generator *generator.Generator
	Scheduler *scheduler.Scheduler
}

// JobInstances holds references to registered jobs for manual triggering
type JobInstances struct {
	PruneHistory *scheduler.PruneHistoryJob
	CheckWAL     *scheduler.CheckWALJob
}

// Close releases the container's resources. Safe to call on a partially
// built container.
func (c *Container) Close() error {
	if c == nil || c.HistoryDB == nil {
		return nil
	}
	return c.HistoryDB.Close()
}
