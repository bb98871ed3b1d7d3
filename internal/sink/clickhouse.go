package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"NetDistill/internal/config"
	"NetDistill/internal/model"
)

const createGroupsTable = `
CREATE TABLE IF NOT EXISTS flow_groups (
    HourStart   DateTime,
    HourEnd     DateTime,
    SrcIP       String,
    DstIP       String,
    DstPort     UInt16,
    Transport   String,
    Service     String,
    FirstTS     Float64,
    LastTS      Float64,
    DurationS   Float64,
    PktsUp      UInt64,
    PktsDn      UInt64,
    BytesUp     UInt64,
    BytesDn     UInt64,
    SynCount    UInt64,
    AckCount    UInt64,
    RstCount    UInt64,
    FinCount    UInt64,
    Tokens      String,
    Enrichment  String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(HourStart)
ORDER BY (HourStart, SrcIP, DstIP);
`

const createScansTable = `
CREATE TABLE IF NOT EXISTS scan_summaries (
    HourStart    DateTime,
    HourEnd      DateTime,
    SrcIP        String,
    UniqueDsts   UInt32,
    UniquePorts  UInt32,
    SynOnlyRatio Float64,
    Targets      String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(HourStart)
ORDER BY (HourStart, SrcIP);
`

// ClickHouseSink buffers the records of one run and batch-inserts them when
// the metrics arrive, so each run lands as one batch per table.
type ClickHouseSink struct {
	conn   driver.Conn
	groups []*model.GroupRecord
	scans  []*model.ScanSummary
}

// NewClickHouseSink connects, pings, and ensures both tables exist.
func NewClickHouseSink(cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	for _, stmt := range []string{createGroupsTable, createScansTable} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Connected to ClickHouse and ensured tables exist.")
	return &ClickHouseSink{conn: conn}, nil
}

func (s *ClickHouseSink) OnGroup(rec *model.GroupRecord) {
	s.groups = append(s.groups, rec)
}

func (s *ClickHouseSink) OnScan(sum *model.ScanSummary) {
	s.scans = append(s.scans, sum)
}

// OnMetrics flushes the run's buffered records.
func (s *ClickHouseSink) OnMetrics(m *model.Metrics) {
	if err := s.flushGroups(); err != nil {
		log.Printf("clickhouse sink: failed to write groups: %v", err)
	}
	if err := s.flushScans(); err != nil {
		log.Printf("clickhouse sink: failed to write scans: %v", err)
	}
	log.Printf("Run complete: %d packets, %d groups, %d scan summaries.",
		m.PacketsProcessed, m.GroupsEmitted, m.ScansCollapsed)
	s.groups = nil
	s.scans = nil
}

// Close shuts the connection down.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

func (s *ClickHouseSink) flushGroups() error {
	if len(s.groups) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(context.Background(), "INSERT INTO flow_groups")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, rec := range s.groups {
		tokens, _ := json.Marshal(rec.Tokens)
		enrichment := marshalEnrichment(rec)
		err = batch.Append(
			time.Unix(rec.LineageHour.HourStart, 0).UTC(),
			time.Unix(rec.LineageHour.HourEnd, 0).UTC(),
			rec.Key.SrcIP,
			rec.Key.DstIP,
			rec.Key.DstPort,
			string(rec.Key.Transport),
			rec.Key.Service,
			rec.Time.FirstTS,
			rec.Time.LastTS,
			rec.Time.DurationS,
			rec.Counts.PktsUp,
			rec.Counts.PktsDn,
			rec.Counts.BytesUp,
			rec.Counts.BytesDn,
			rec.TCPFlags.Syn,
			rec.TCPFlags.Ack,
			rec.TCPFlags.Rst,
			rec.TCPFlags.Fin,
			string(tokens),
			enrichment,
		)
		if err != nil {
			return fmt.Errorf("failed to append group to batch: %w", err)
		}
	}
	return batch.Send()
}

func (s *ClickHouseSink) flushScans() error {
	if len(s.scans) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(context.Background(), "INSERT INTO scan_summaries")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, sum := range s.scans {
		targets, _ := json.Marshal(sum.SampleTargets)
		err = batch.Append(
			time.Unix(sum.Window.HourStart, 0).UTC(),
			time.Unix(sum.Window.HourEnd, 0).UTC(),
			sum.SrcIP,
			uint32(sum.UniqueDsts),
			uint32(sum.UniquePorts),
			sum.SynOnlyRatio,
			string(targets),
		)
		if err != nil {
			return fmt.Errorf("failed to append scan to batch: %w", err)
		}
	}
	return batch.Send()
}

// marshalEnrichment flattens whichever protocol block the record carries
// into one JSON string column.
func marshalEnrichment(rec *model.GroupRecord) string {
	switch {
	case rec.HTTP != nil:
		b, _ := json.Marshal(map[string]any{"http": rec.HTTP})
		return string(b)
	case rec.FTP != nil:
		b, _ := json.Marshal(map[string]any{"ftp": rec.FTP})
		return string(b)
	case rec.SMB != nil:
		b, _ := json.Marshal(map[string]any{"smb": rec.SMB})
		return string(b)
	}
	return ""
}
