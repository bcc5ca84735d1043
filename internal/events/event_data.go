package events

// EventData is the interface that all event data types must implement
type EventData interface {
	EventType() EventType
}

// GenerationStartedData contains data for GenerationStarted events
type GenerationStartedData struct {
	RunID      string `json:"run_id"`
	ConfigPath string `json:"config_path"`
}

// EventType returns the event type for GenerationStartedData
func (d *GenerationStartedData) EventType() EventType {
	return GenerationStarted
}

// WidgetGeneratedData contains data for WidgetGenerated events
type WidgetGeneratedData struct {
	RunID    string `json:"run_id"`
	WidgetID string `json:"widget_id"`
	Kind     string `json:"kind"`
}

// EventType returns the event type for WidgetGeneratedData
func (d *WidgetGeneratedData) EventType() EventType {
	return WidgetGenerated
}

// WidgetFailedData contains data for WidgetFailed events
type WidgetFailedData struct {
	RunID    string `json:"run_id"`
	WidgetID string `json:"widget_id,omitempty"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

// EventType returns the event type for WidgetFailedData
func (d *WidgetFailedData) EventType() EventType {
	return WidgetFailed
}

// GenerationCompletedData contains data for GenerationCompleted events
type GenerationCompletedData struct {
	RunID      string   `json:"run_id"`
	Status     string   `json:"status"`
	Widgets    int      `json:"widgets"`
	Loads      int      `json:"loads"`
	Errors     int      `json:"errors"`
	Files      []string `json:"files,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// EventType returns the event type for GenerationCompletedData
func (d *GenerationCompletedData) EventType() EventType {
	return GenerationCompleted
}

// GenerationSkippedData contains data for GenerationSkipped events
type GenerationSkippedData struct {
	RunID         string `json:"run_id"`
	InputHash     string `json:"input_hash"`
	PreviousRunID string `json:"previous_run_id"`
}

// EventType returns the event type for GenerationSkippedData
func (d *GenerationSkippedData) EventType() EventType {
	return GenerationSkipped
}

// HistoryPrunedData contains data for HistoryPruned events
type HistoryPrunedData struct {
	Removed int64  `json:"removed"`
	Cutoff  string `json:"cutoff"`
}

// EventType returns the event type for HistoryPrunedData
func (d *HistoryPrunedData) EventType() EventType {
	return HistoryPruned
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
