package events

import "encoding/json"

// EventData is implemented by every typed event payload
type EventData interface {
	EventType() EventType
}

// RunStartedData is emitted when a run passes its gates
type RunStartedData struct {
	RunID   string `json:"run_id"`
	Date    string `json:"date"`
	Trigger string `json:"trigger"`
	Force   bool   `json:"force"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// RunStatusChangedData is emitted on every status transition
type RunStatusChangedData struct {
	RunID string `json:"run_id"`
	Date  string `json:"date"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// EventType returns the event type for RunStatusChangedData
func (d *RunStatusChangedData) EventType() EventType {
	return RunStatusChanged
}

// RunCompletedData is emitted once the backup is persisted
type RunCompletedData struct {
	RunID      string `json:"run_id"`
	Date       string `json:"date"`
	Degraded   bool   `json:"degraded"`
	HTMLPath   string `json:"html_path"`
	PDFPath    string `json:"pdf_path,omitempty"`
	BackupPath string `json:"backup_path"`
	DurationMs int64  `json:"duration_ms"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// RunFailedData is emitted when a step aborts the run
type RunFailedData struct {
	RunID string `json:"run_id"`
	Date  string `json:"date"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// EventType returns the event type for RunFailedData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// RunRejectedData is emitted when a trigger is refused before a run exists
type RunRejectedData struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// EventType returns the event type for RunRejectedData
func (d *RunRejectedData) EventType() EventType {
	return RunRejected
}

// ErrorEventData carries an error outside the run lifecycle (mail-out, mirror)
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// GetTypedData converts the event's Data map back into its typed payload.
// Returns nil for unknown types or undecodable data.
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	var data EventData
	switch e.Type {
	case RunStarted:
		data = &RunStartedData{}
	case RunStatusChanged:
		data = &RunStatusChangedData{}
	case RunCompleted:
		data = &RunCompletedData{}
	case RunFailed:
		data = &RunFailedData{}
	case RunRejected:
		data = &RunRejectedData{}
	case ErrorOccurred:
		data = &ErrorEventData{}
	default:
		return nil
	}

	if err := convertMapToStruct(e.Data, data); err != nil {
		return nil
	}
	return data
}

func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}

func convertEventDataToMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}
