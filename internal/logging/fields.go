package logging

// Standardized structured logging keys shared across components.
const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldQueue names the queue a record refers to.
	FieldQueue = "queue"
	// FieldItemID is the queue item identifier.
	FieldItemID = "item_id"
	// FieldWorker is the heartbeat identity of a worker process.
	FieldWorker = "worker"
	// FieldAttempt is the 1-based retry attempt number.
	FieldAttempt = "attempt"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// Alert builds an alert attribute for anomalies a supervisor should notice.
func Alert(value string) Attr {
	return String(FieldAlert, value)
}
