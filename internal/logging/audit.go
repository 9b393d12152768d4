package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names a knowledge-base event. Each type doubles as the
// predicate of the program line returned by AuditEvent.Fact, so an audit
// trail can be fed back into a store with LoadProgram.
type AuditEventType string

const (
	AuditBackendSelected AuditEventType = "auditBackendSelected"
	AuditProgramLoaded   AuditEventType = "auditProgramLoaded"
	AuditKnowledgeAdded  AuditEventType = "auditKnowledgeAdded"
	AuditKnowledgeFailed AuditEventType = "auditKnowledgeFailed"
)

// AuditEvent is one structured audit entry.
type AuditEvent struct {
	Timestamp int64          `json:"ts"`      // Unix milliseconds
	EventType AuditEventType `json:"event"`   // Program predicate
	Target    string         `json:"target"`  // Subject of the event
	Detail    string         `json:"detail"`  // Object of the event
	Backend   string         `json:"backend"` // Backend that handled it
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

// Fact renders the event as a program line: (eventType target "detail").
// Program tokens have no escapes, so double quotes become single quotes and
// line breaks become spaces, and an empty slot is written as "-". The target
// is quoted only when it needs to be.
func (e AuditEvent) Fact() string {
	target := programText(e.Target)
	if strings.ContainsAny(target, " \t()") || strings.HasPrefix(target, "$") {
		target = `"` + target + `"`
	}
	return fmt.Sprintf(`(%s %s "%s")`, e.EventType, target, programText(e.Detail))
}

var programTextReplacer = strings.NewReplacer(`"`, "'", "\r\n", " ", "\n", " ", "\r", " ")

func programText(s string) string {
	if s == "" {
		return "-"
	}
	return programTextReplacer.Replace(s)
}

// AuditLogger writes audit events to the audit category.
type AuditLogger struct {
	backend string
}

// Audit returns an audit logger tagged with the backend name.
func Audit(backend string) *AuditLogger {
	return &AuditLogger{backend: backend}
}

// Log writes an event. Disabled when the audit category is off.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsCategoryEnabled(CategoryAudit) {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.Backend == "" {
		event.Backend = a.backend
	}

	Zap().Named(string(CategoryAudit)).Info(string(event.EventType),
		zap.Int64("ts", event.Timestamp),
		zap.String("target", event.Target),
		zap.String("detail", event.Detail),
		zap.String("backend", event.Backend),
		zap.Bool("success", event.Success),
		zap.String("error", event.Error),
		zap.String("fact", event.Fact()),
	)
}

// BackendSelected records the backend chosen at startup.
func (a *AuditLogger) BackendSelected(requested string) {
	a.Log(AuditEvent{
		EventType: AuditBackendSelected,
		Target:    requested,
		Detail:    a.backend,
		Success:   true,
	})
}

// ProgramLoaded records a bulk load.
func (a *AuditLogger) ProgramLoaded(source string, triples int) {
	a.Log(AuditEvent{
		EventType: AuditProgramLoaded,
		Target:    source,
		Detail:    fmt.Sprintf("%d triples", triples),
		Success:   true,
	})
}

// KnowledgeAdded records a runtime mutation. err is nil on success.
func (a *AuditLogger) KnowledgeAdded(relation, subject, value string, err error) {
	event := AuditEvent{
		EventType: AuditKnowledgeAdded,
		Target:    subject,
		Detail:    relation + "=" + value,
		Success:   err == nil,
	}
	if err != nil {
		event.EventType = AuditKnowledgeFailed
		event.Error = err.Error()
	}
	a.Log(event)
}
