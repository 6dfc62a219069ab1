package logging

const (
	// FieldComponent names the subsystem that emitted the line.
	FieldComponent = "component"
	// FieldVideoID is the catalog identifier of the video being processed.
	FieldVideoID = "video_id"
	// FieldStage is the pipeline stage name.
	FieldStage = "stage"
	// FieldCorrelationID carries the HTTP request identifier.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags anomalies that should stand out.
	FieldAlert = "alert"
	// FieldSource is the transcript source that produced a result.
	FieldSource = "source"
)
