// Package sink provides event sink adapters: JSON-lines text output,
// ClickHouse batch inserts, and NATS publishing. The engine core depends
// only on the model.EventSink port, never on these implementations.
package sink

import (
	"encoding/json"
	"io"
	"log"

	"NetDistill/internal/model"
)

// line is the JSON-lines envelope written by the text sink.
type line struct {
	Kind    string             `json:"kind"`
	Group   *model.GroupRecord `json:"group,omitempty"`
	Scan    *model.ScanSummary `json:"scan,omitempty"`
	Metrics *model.Metrics     `json:"metrics,omitempty"`
}

// TextSink writes one JSON object per record to an io.Writer. Useful for
// piping into files or ad-hoc inspection.
type TextSink struct {
	enc *json.Encoder
}

// NewTextSink wraps a writer in a JSON-lines event sink.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{enc: json.NewEncoder(w)}
}

func (s *TextSink) OnGroup(rec *model.GroupRecord) {
	if err := s.enc.Encode(line{Kind: "group", Group: rec}); err != nil {
		log.Printf("text sink: failed to write group: %v", err)
	}
}

func (s *TextSink) OnScan(sum *model.ScanSummary) {
	if err := s.enc.Encode(line{Kind: "scan", Scan: sum}); err != nil {
		log.Printf("text sink: failed to write scan: %v", err)
	}
}

func (s *TextSink) OnMetrics(m *model.Metrics) {
	if err := s.enc.Encode(line{Kind: "metrics", Metrics: m}); err != nil {
		log.Printf("text sink: failed to write metrics: %v", err)
	}
}
