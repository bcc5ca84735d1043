// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	GenerationStarted   EventType = "GENERATION_STARTED"
	WidgetGenerated     EventType = "WIDGET_GENERATED"
	WidgetFailed        EventType = "WIDGET_FAILED"
	GenerationCompleted EventType = "GENERATION_COMPLETED"
	GenerationSkipped   EventType = "GENERATION_SKIPPED"
	HistoryPruned       EventType = "HISTORY_PRUNED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type, for subscribers that want everything.
func AllTypes() []EventType {
	return []EventType{
		GenerationStarted,
		WidgetGenerated,
		WidgetFailed,
		GenerationCompleted,
		GenerationSkipped,
		HistoryPruned,
		ErrorOccurred,
	}
}
