package provisioning

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Observer defines the interface for structured observability during an operation.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a stage
	Progress(stage string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer

	// Logr returns the logger handed to platform clients.
	Logr() logr.Logger
}

// Event represents a structured operation event.
type Event struct {
	Type      EventType         // Type of event
	Stage     string            // Stage name (e.g., "deploy", "destroy")
	Message   string            // Human-readable message
	Resource  string            // Resource name/ID if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of operation event.
type EventType string

const (
	// EventStageStarted indicates a stage has started.
	EventStageStarted EventType = "stage.started"
	// EventStageCompleted indicates a stage completed successfully.
	EventStageCompleted EventType = "stage.completed"
	// EventStageFailed indicates a stage failed.
	EventStageFailed EventType = "stage.failed"
	// EventStageSkipped indicates a stage whose effect was already in place.
	EventStageSkipped EventType = "stage.skipped"

	// EventResourceCreated indicates a resource was created or pushed.
	EventResourceCreated EventType = "resource.created"
	// EventResourceExists indicates a resource already exists.
	EventResourceExists EventType = "resource.exists"
	// EventResourceDeleted indicates a resource was deleted.
	EventResourceDeleted EventType = "resource.deleted"

	// EventValidationWarning indicates a preflight warning.
	EventValidationWarning EventType = "validation.warning"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// ConsoleObserver implements Observer on top of a logr console sink.
type ConsoleObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// ObserverOption configures a ConsoleObserver.
type ObserverOption func(*consoleSink)

// WithVerbosity enables logr V-levels up to v.
func WithVerbosity(v int) ObserverOption {
	return func(s *consoleSink) { s.verbosity = v }
}

// WithOutput redirects console lines to w.
func WithOutput(w io.Writer) ObserverOption {
	return func(s *consoleSink) { s.out = log.New(w, "", log.LstdFlags) }
}

// NewConsoleObserver creates a new console-based observer.
func NewConsoleObserver(opts ...ObserverOption) *ConsoleObserver {
	sink := &consoleSink{out: log.New(os.Stderr, "", log.LstdFlags)}
	for _, opt := range opts {
		opt(sink)
	}
	return &ConsoleObserver{
		log:           logr.New(sink),
		contextFields: make(map[string]string),
	}
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	o.log.Info(fmt.Sprintf(format, v...))
}

// Event implements Observer interface.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Merge context fields
	if event.Fields == nil {
		event.Fields = make(map[string]string)
	}
	for k, v := range o.contextFields {
		if _, exists := event.Fields[k]; !exists {
			event.Fields[k] = v
		}
	}

	o.log.Info(o.formatEvent(event))
}

// Progress implements Observer interface. It is emitted as an EventProgress.
func (o *ConsoleObserver) Progress(stage string, current, total int) {
	message := fmt.Sprintf("%d/%d", current, total)
	if total > 0 {
		message = fmt.Sprintf("%s (%d%%)", message, (current*100)/total)
	}
	o.Event(Event{
		Type:    EventProgress,
		Stage:   stage,
		Message: message,
		Fields:  map[string]string{"current": fmt.Sprint(current), "total": fmt.Sprint(total)},
	})
}

// WithFields implements Observer interface.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	newFields := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &ConsoleObserver{
		log:           o.log,
		contextFields: newFields,
	}
}

// Logr implements Observer interface.
func (o *ConsoleObserver) Logr() logr.Logger {
	return o.log
}

// formatEvent formats an event for console output.
func (o *ConsoleObserver) formatEvent(event Event) string {
	var parts []string

	parts = append(parts, string(event.Type))

	if event.Stage != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Stage))
	}

	if event.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", event.Resource))
	}

	parts = append(parts, event.Message)

	if len(event.Fields) > 0 {
		parts = append(parts, fmt.Sprintf("(%s)", joinFields(event.Fields)))
	}

	return strings.Join(parts, " ")
}

func joinFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return strings.Join(parts, ", ")
}

// consoleSink is a logr.LogSink that writes one human-readable line per
// record through the standard logger.
type consoleSink struct {
	out       *log.Logger
	verbosity int
	name      string
	values    []interface{}
}

func (s *consoleSink) Init(logr.RuntimeInfo) {}

func (s *consoleSink) Enabled(level int) bool {
	return level <= s.verbosity
}

func (s *consoleSink) Info(_ int, msg string, kv ...interface{}) {
	s.out.Print(s.format(msg, kv))
}

func (s *consoleSink) Error(err error, msg string, kv ...interface{}) {
	s.out.Print(s.format(fmt.Sprintf("%s: %v", msg, err), kv))
}

func (s *consoleSink) WithValues(kv ...interface{}) logr.LogSink {
	c := *s
	c.values = append(append([]interface{}{}, s.values...), kv...)
	return &c
}

func (s *consoleSink) WithName(name string) logr.LogSink {
	c := *s
	if c.name != "" {
		name = c.name + "/" + name
	}
	c.name = name
	return &c
}

func (s *consoleSink) format(msg string, kv []interface{}) string {
	var b strings.Builder
	if s.name != "" {
		b.WriteString(s.name)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	all := append(append([]interface{}{}, s.values...), kv...)
	// Key/value pairs are detail; they are shown only when verbose.
	if s.verbosity > 0 && len(all) > 0 {
		b.WriteString(" (")
		for i := 0; i+1 < len(all); i += 2 {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%v=%v", all[i], all[i+1])
		}
		b.WriteString(")")
	}
	return b.String()
}

// LogStageStart logs a stage start event.
func LogStageStart(observer Observer, stage string) {
	observer.Event(Event{
		Type:    EventStageStarted,
		Stage:   stage,
		Message: "starting",
	})
}

// LogStageComplete logs a stage completion event.
func LogStageComplete(observer Observer, stage string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventStageCompleted,
		Stage:   stage,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogStageFailed logs a stage failure event.
func LogStageFailed(observer Observer, stage string, err error) {
	observer.Event(Event{
		Type:    EventStageFailed,
		Stage:   stage,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogStageSkipped logs a stage that had nothing to do.
func LogStageSkipped(observer Observer, stage string) {
	observer.Event(Event{
		Type:    EventStageSkipped,
		Stage:   stage,
		Message: "already done, skipping",
	})
}

// LogResourceCreated logs a resource that was created or pushed.
func LogResourceCreated(observer Observer, stage, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Stage:    stage,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s created", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}

// LogResourceExists logs when a resource already exists.
func LogResourceExists(observer Observer, stage, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Stage:    stage,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s already exists", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}

// LogResourceDeleted logs a successful resource deletion event.
func LogResourceDeleted(observer Observer, stage, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Stage:    stage,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s deleted", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}
