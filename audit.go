package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditEvent is one security-relevant engine event.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Subject   string            `json:"subject,omitempty"`
	RecordID  string            `json:"record_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the dispatcher. Emit must be safe for
// concurrent use; slow sinks only ever delay or drop audit delivery, never
// the request path.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

// Emit implements AuditSink.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a channel, for callers that run their own
// consumer loop.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink builds a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

// Emit implements AuditSink.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the consumer side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink builds a JSONWriterSink over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit implements AuditSink.
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZerologSink emits events as structured log lines.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink builds a ZerologSink over logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// Emit implements AuditSink.
func (s *ZerologSink) Emit(_ context.Context, event AuditEvent) {
	entry := s.logger.Info()
	if !event.Success {
		entry = s.logger.Warn()
	}
	entry = entry.
		Time("ts", event.Timestamp).
		Str("event", event.EventType).
		Bool("success", event.Success)
	if event.Subject != "" {
		entry = entry.Str("subject", event.Subject)
	}
	if event.RecordID != "" {
		entry = entry.Str("record_id", event.RecordID)
	}
	if event.IP != "" {
		entry = entry.Str("ip", event.IP)
	}
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}
	for k, v := range event.Metadata {
		entry = entry.Str(k, v)
	}
	entry.Msg("audit")
}
