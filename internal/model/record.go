package model

// TimeSpan is the time block of an emitted GroupRecord. Timestamps are UTC
// epoch seconds with sub-second precision.
type TimeSpan struct {
	FirstTS   float64 `json:"first_ts"`
	LastTS    float64 `json:"last_ts"`
	DurationS float64 `json:"duration_s"`
}

// Counts holds the directional packet and byte totals of a group.
type Counts struct {
	PktsUp  uint64 `json:"pkts_up"`
	PktsDn  uint64 `json:"pkts_dn"`
	BytesUp uint64 `json:"bytes_up"`
	BytesDn uint64 `json:"bytes_dn"`
}

// Window is a half-open [HourStart, HourEnd) interval in UTC epoch seconds.
type Window struct {
	HourStart int64 `json:"hour_start"`
	HourEnd   int64 `json:"hour_end"`
}

// HTTPEnrichment is the HTTP block of a GroupRecord: sampled URI tokens.
type HTTPEnrichment struct {
	URITokens []string `json:"uri_tokens"`
}

// GroupRecord is the immutable record emitted once per closed flow
// accumulator or idle-split slice. Tokens is a pure function of the numeric
// features: identical features always yield identical tokens.
type GroupRecord struct {
	Key         FlowKey           `json:"key"`
	Time        TimeSpan          `json:"time"`
	Counts      Counts            `json:"counts"`
	TCPFlags    FlagCounts        `json:"tcp_flags"`
	Tokens      map[string]int    `json:"tokens"`
	HTTP        *HTTPEnrichment   `json:"http,omitempty"`
	FTP         map[string]uint64 `json:"ftp,omitempty"`
	SMB         map[string]uint64 `json:"smb,omitempty"`
	LineageHour Window            `json:"lineage_hour"`
}

// Target is one example destination kept in a ScanSummary.
type Target struct {
	DstIP   string `json:"dst_ip"`
	DstPort uint16 `json:"dst_port"`
}

// ScanSummary replaces the individual GroupRecords of a source whose flows
// were classified as repetitive probing. It does not supplement them.
type ScanSummary struct {
	SrcIP         string   `json:"src_ip"`
	Window        Window   `json:"window"`
	UniqueDsts    int      `json:"unique_dsts"`
	UniquePorts   int      `json:"unique_ports"`
	SynOnlyRatio  float64  `json:"syn_only_ratio"`
	SampleTargets []Target `json:"sample_targets"`
}
