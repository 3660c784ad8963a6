// Package trace writes the append-only JSONL audit trail of a batch of
// runs. Every event carries the SHA-256 of the previous line, so a trace
// can be checked for truncation or tampering with Verify.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ormasoftchile/nttrun/pkg/value"
)

// EventType enumerates the trace event types.
type EventType string

const (
	EventBatchStart    EventType = "batch_start"
	EventRunStart      EventType = "run_start"
	EventRunComplete   EventType = "run_complete"
	EventRunError      EventType = "run_error"
	EventBatchComplete EventType = "batch_complete"
)

// genesis is the prev_hash of the first event.
var genesis = strings.Repeat("0", 64)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	BatchID   string         `json:"batch_id"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events. It is safe for concurrent use. A nil
// *Writer discards events.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	batchID  string
	prevHash string
}

// NewWriter creates a trace writer that writes to w.
func NewWriter(w io.Writer, batchID string) *Writer {
	return &Writer{w: w, batchID: batchID, prevHash: genesis}
}

// NewFileWriter creates a trace writer that truncates and writes path.
func NewFileWriter(path, batchID string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, batchID)
	tw.closer = f
	return tw, nil
}

// Close closes the underlying file, if the writer opened one.
func (tw *Writer) Close() error {
	if tw == nil || tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

// BatchID returns the id stamped on every event.
func (tw *Writer) BatchID() string {
	if tw == nil {
		return ""
	}
	return tw.batchID
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	if tw == nil {
		return nil
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()

	line, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		BatchID:   tw.batchID,
		PrevHash:  tw.prevHash,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	h := sha256.Sum256(line)
	tw.prevHash = hex.EncodeToString(h[:])
	return nil
}

// EmitBatchStart emits a batch_start event.
func (tw *Writer) EmitBatchStart(engine string, tests, concurrency int) error {
	return tw.Emit(EventBatchStart, map[string]any{
		"engine":      engine,
		"tests":       tests,
		"concurrency": concurrency,
	})
}

// EmitRunStart emits a run_start event.
func (tw *Writer) EmitRunStart(test string, params []value.Parameter) error {
	data := map[string]any{"test": test}
	if len(params) > 0 {
		data["parameters"] = params
	}
	return tw.Emit(EventRunStart, data)
}

// EmitRunComplete emits a run_complete event for a run that produced a
// verdict.
func (tw *Writer) EmitRunComplete(test, echo string, verdict value.Verdict, params []value.Parameter, duration time.Duration) error {
	data := map[string]any{
		"test":     test,
		"verdict":  verdict.String(),
		"duration": duration.String(),
	}
	if echo != test {
		data["echo"] = echo
	}
	if len(params) > 0 {
		data["parameters"] = params
	}
	return tw.Emit(EventRunComplete, data)
}

// EmitRunError emits a run_error event for a run that produced no verdict.
func (tw *Writer) EmitRunError(test, kind string, err error, duration time.Duration) error {
	return tw.Emit(EventRunError, map[string]any{
		"test":     test,
		"kind":     kind,
		"error":    err.Error(),
		"duration": duration.String(),
	})
}

// EmitBatchComplete emits a batch_complete event.
func (tw *Writer) EmitBatchComplete(overall value.Verdict, counts map[string]int, duration time.Duration) error {
	return tw.Emit(EventBatchComplete, map[string]any{
		"verdict":  overall.String(),
		"counts":   counts,
		"duration": duration.String(),
	})
}
