package observability

// Audit event names emitted by the persistence pipeline. These are the only
// externally observable trail of a write and are consumed by operational
// monitoring; renaming one breaks alerting.
const (
	EventPersistStart          = "PERSIST_START"
	EventFactsOK               = "FACTS_OK"
	EventFactsSkipEmpty        = "FACTS_SKIP_EMPTY"
	EventSnapshotOK            = "SNAPSHOT_OK"
	EventPersistEnd            = "PERSIST_END"
	EventPersistFail           = "PERSIST_FAIL"
	EventPersistAbortInvalidID = "PERSIST_ABORT_INVALID_CLIENTE_ID"
	EventSnapshotReadFail      = "SNAPSHOT_READ_FAIL"
	EventShardOverflow         = "SHARD_OVERFLOW"
	EventProviderError         = "PROVIDER_ERROR"
)

// AuditEvent is a point-in-time persistence event, also fanned out to
// websocket subscribers for live board updates.
type AuditEvent struct {
	Name       string `json:"name"`
	ClienteID  string `json:"cliente_id,omitempty"`
	ConsultaID string `json:"consulta_id,omitempty"`
	Inserted   int    `json:"inserted,omitempty"`
	Skipped    int    `json:"skipped,omitempty"`
	Hash       string `json:"hash,omitempty"`
	Message    string `json:"message,omitempty"`
}

// AuditSink receives audit events as they are emitted.
type AuditSink interface {
	Publish(event AuditEvent)
}

var defaultSink AuditSink

// SetAuditSink installs a process-wide audit event sink. A nil sink disables
// fan-out; logging is unaffected.
func SetAuditSink(sink AuditSink) {
	defaultSink = sink
}

// Audit logs the event through the global logger and forwards it to the
// configured sink.
func Audit(event AuditEvent) {
	fields := make([]Field, 0, 6)
	if event.ClienteID != "" {
		fields = append(fields, F("clienteId", event.ClienteID))
	}
	if event.ConsultaID != "" {
		fields = append(fields, F("consultaId", event.ConsultaID))
	}
	if event.Inserted > 0 || event.Name == EventFactsOK {
		fields = append(fields, F("inserted", event.Inserted), F("skipped", event.Skipped))
	}
	if event.Hash != "" {
		fields = append(fields, F("snapshotHash", event.Hash))
	}
	if event.Message != "" {
		fields = append(fields, F("message", event.Message))
	}
	switch event.Name {
	case EventPersistFail, EventProviderError, EventSnapshotReadFail:
		Log().Error(event.Name, fields...)
	case EventPersistAbortInvalidID, EventShardOverflow:
		Log().Warn(event.Name, fields...)
	default:
		Log().Info(event.Name, fields...)
	}
	if defaultSink != nil {
		defaultSink.Publish(event)
	}
}
