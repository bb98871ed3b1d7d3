package model

import "time"

// Transport is the L4 protocol of a flow. Only TCP and UDP reach the
// grouping stage; everything else is dropped by the decoder.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

// TCP flag bits as they appear in the packet header.
const (
	TCPFin uint8 = 0x01
	TCPSyn uint8 = 0x02
	TCPRst uint8 = 0x04
	TCPAck uint8 = 0x10
)

// FlowKey is the reduced five-tuple used for grouping. The source port is
// deliberately excluded: it is ephemeral and would fragment groups.
type FlowKey struct {
	SrcIP     string    `json:"src_ip"`
	DstIP     string    `json:"dst_ip"`
	DstPort   uint16    `json:"dst_port"`
	Transport Transport `json:"transport"`
	Service   string    `json:"service"`
}

// PacketRecord holds the metadata extracted from a single packet. It is
// ephemeral and never persisted. Preview carries at most a few hundred bytes
// of TCP payload for the protocol enrichers and is dropped with the record.
type PacketRecord struct {
	Timestamp time.Time
	SrcIP     string
	DstIP     string
	SrcPort   uint16
	DstPort   uint16
	Transport Transport
	TCPFlags  uint8 // valid only when Transport == TransportTCP
	FrameLen  int
	Preview   []byte
}

// FlagCounts is the per-flow TCP flag histogram. Flags are counted, not
// deduplicated: one packet can increment several counters.
type FlagCounts struct {
	Syn uint64 `json:"syn"`
	Ack uint64 `json:"ack"`
	Rst uint64 `json:"rst"`
	Fin uint64 `json:"fin"`
}

// Enrichment is the bounded protocol-specific accumulator attached to a flow
// (HTTP, FTP or SMB). It observes packets already classified to its flow and
// must never retain raw payload beyond the tokens it extracts.
type Enrichment interface {
	Observe(pkt *PacketRecord)
}

// FlowAccumulator is the mutable per-flow state. It is owned exclusively by
// the grouper from creation until it is finalized into a GroupRecord or
// collapsed into a ScanSummary. Invariant: FirstTS <= LastTS, counters are
// monotonically non-decreasing while open.
type FlowAccumulator struct {
	Key     FlowKey
	FirstTS time.Time
	LastTS  time.Time
	PktsUp  uint64
	PktsDn  uint64
	BytesUp uint64
	BytesDn uint64
	Flags   FlagCounts

	// FirstSrc is the address that sent the first packet of the flow; it
	// fixes the "up" direction for all later packets.
	FirstSrc string

	// Enrich is created lazily on the first packet of a recognized service.
	Enrich Enrichment
}

// Duration returns the flow duration in seconds, floored at zero.
func (a *FlowAccumulator) Duration() float64 {
	d := a.LastTS.Sub(a.FirstTS).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Metrics is accumulated across one RunHour call and reported once at the
// end via EventSink.OnMetrics. ScansCollapsed counts emitted ScanSummary
// records, not the individual flows they replace.
type Metrics struct {
	PacketsProcessed uint64 `json:"packets_processed"`
	GroupsEmitted    uint64 `json:"groups_emitted"`
	ScansCollapsed   uint64 `json:"scans_collapsed"`
	HTTPEnriched     uint64 `json:"http_enriched"`
	FTPEnriched      uint64 `json:"ftp_enriched"`
	SMBEnriched      uint64 `json:"smb_enriched"`
	SegmentsListed   uint64 `json:"segments_listed"`
	SegmentsFailed   uint64 `json:"segments_failed"`
	DecodeErrors     uint64 `json:"decode_errors"`
}
