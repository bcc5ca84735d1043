package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lvglgen/internal/config"
	"github.com/aristath/lvglgen/internal/events"
	"github.com/aristath/lvglgen/internal/generator"
	"github.com/aristath/lvglgen/internal/history"
	"github.com/aristath/lvglgen/internal/modules/arclabel"
	"github.com/aristath/lvglgen/internal/modules/lottie"
	"github.com/aristath/lvglgen/internal/scheduler"
	"github.com/aristath/lvglgen/internal/widgets"
)

// InitializeRepositories creates the data access layer
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.HistoryDB == nil {
		return fmt.Errorf("history database not initialized")
	}
	container.HistoryRepo = history.NewRepository(container.HistoryDB.Conn(), log)
	return nil
}

// InitializeServices registers the widget translators and builds the
// generator and scheduler.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.WidgetTypes = widgets.NewRegistry()
	container.Actions = widgets.NewActionRegistry()
	arclabel.Register(container.WidgetTypes, container.Actions)
	lottie.Register(container.WidgetTypes, container.Actions)

	container.Generator = generator.New(
		container.WidgetTypes,
		container.Actions,
		container.HistoryRepo,
		container.EventManager,
		cfg.Memory,
		log,
	)
	container.Scheduler = scheduler.New(log)

	log.Debug().
		Strs("widgets", container.WidgetTypes.Names()).
		Int("actions", len(container.Actions.Names())).
		Msg("Widget translators registered")
	return nil
}
