package sink

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"NetDistill/internal/config"
	"NetDistill/internal/model"
)

// NATSSink publishes records as JSON messages on three subjects derived
// from the configured base: <subject>.groups, .scans and .metrics.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the NATS server.
func NewNATSSink(cfg config.NATSConfig) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSSink{nc: nc, subject: cfg.Subject}, nil
}

func (s *NATSSink) OnGroup(rec *model.GroupRecord) {
	s.publish(s.subject+".groups", rec)
}

func (s *NATSSink) OnScan(sum *model.ScanSummary) {
	s.publish(s.subject+".scans", sum)
}

func (s *NATSSink) OnMetrics(m *model.Metrics) {
	s.publish(s.subject+".metrics", m)
}

func (s *NATSSink) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("nats sink: failed to marshal for %s: %v", subject, err)
		return
	}
	if err := s.nc.Publish(subject, data); err != nil {
		log.Printf("nats sink: failed to publish to %s: %v", subject, err)
	}
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
