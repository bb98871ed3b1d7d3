package compactor

import (
	"bytes"
	"fmt"
	"strings"

	"NetDistill/internal/model"
)

// Per-flow soft caps keeping enrichment state bounded before sampling.
const (
	httpTokenSoftCap = 256
	smbCommandCap    = 32
)

// newEnrichment selects the protocol accumulator for a service, or nil for
// services without one.
func newEnrichment(service string) model.Enrichment {
	switch service {
	case "http":
		return &httpEnrichment{seen: make(map[string]struct{})}
	case "ftp":
		return &ftpEnrichment{counts: make(map[string]uint64)}
	case "smb":
		return &smbEnrichment{counts: make(map[string]uint64)}
	default:
		return nil
	}
}

// --- HTTP --------------------------------------------------------------

var httpMethods = [][]byte{
	[]byte("GET "), []byte("POST "), []byte("HEAD "), []byte("PUT "),
	[]byte("DELETE "), []byte("OPTIONS "), []byte("PATCH "),
}

// httpEnrichment collects deduplicated URI tokens from request lines, up to
// a soft cap. The sampler enforces the final budget at emission time.
type httpEnrichment struct {
	seen   map[string]struct{}
	tokens []string
}

func (e *httpEnrichment) Observe(pkt *model.PacketRecord) {
	if len(pkt.Preview) == 0 || len(e.tokens) >= httpTokenSoftCap {
		return
	}
	line := pkt.Preview
	if i := bytes.Index(line, []byte("\r\n")); i >= 0 {
		line = line[:i]
	}
	isRequest := false
	for _, m := range httpMethods {
		if bytes.HasPrefix(line, m) {
			isRequest = true
			break
		}
	}
	if !isRequest {
		return
	}

	space1 := bytes.IndexByte(line, ' ')
	if space1 <= 0 {
		return
	}
	target := line[space1+1:]
	if i := bytes.Index(target, []byte(" HTTP/")); i >= 0 {
		target = target[:i]
	}

	for _, tok := range splitURITokens(target) {
		if len(e.tokens) >= httpTokenSoftCap {
			return
		}
		if _, dup := e.seen[tok]; dup {
			continue
		}
		e.seen[tok] = struct{}{}
		e.tokens = append(e.tokens, tok)
	}
}

// Tokens returns the collected URI tokens in insertion order.
func (e *httpEnrichment) Tokens() []string {
	return e.tokens
}

const uriSeparators = "/?&=+%.:-_#"

func splitURITokens(target []byte) []string {
	s := strings.ToLower(string(target))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || strings.ContainsRune(uriSeparators, r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// --- FTP ---------------------------------------------------------------

var ftpVerbs = []string{"USER", "PASS", "STOR", "RETR"}

// ftpEnrichment counts the high-signal FTP command verbs.
type ftpEnrichment struct {
	counts map[string]uint64
}

func (e *ftpEnrichment) Observe(pkt *model.PacketRecord) {
	if len(pkt.Preview) == 0 {
		return
	}
	for _, line := range bytes.Split(pkt.Preview, []byte("\r\n")) {
		upper := bytes.ToUpper(line)
		for _, verb := range ftpVerbs {
			if bytes.HasPrefix(upper, []byte(verb+" ")) {
				e.counts[verb]++
			}
		}
	}
}

// Counts returns the verb histogram, nil when nothing was seen.
func (e *ftpEnrichment) Counts() map[string]uint64 {
	if len(e.counts) == 0 {
		return nil
	}
	return e.counts
}

// --- SMB ---------------------------------------------------------------

// smbEnrichment keeps a small sketch of SMB1/SMB2 command codes, with the
// distinct-command cardinality capped.
type smbEnrichment struct {
	counts map[string]uint64
}

func (e *smbEnrichment) Observe(pkt *model.PacketRecord) {
	blob := pkt.Preview
	if len(blob) < 8 {
		return
	}

	var key string
	switch {
	case bytes.HasPrefix(blob, []byte("\xfeSMB")) && len(blob) >= 16:
		key = fmt.Sprintf("SMB2_%d", blob[12])
	case bytes.HasPrefix(blob, []byte("\xffSMB")):
		key = fmt.Sprintf("SMB1_%d", blob[4])
	default:
		return
	}

	if _, ok := e.counts[key]; !ok && len(e.counts) >= smbCommandCap {
		return
	}
	e.counts[key]++
}

// Counts returns the command sketch, nil when nothing was seen.
func (e *smbEnrichment) Counts() map[string]uint64 {
	if len(e.counts) == 0 {
		return nil
	}
	return e.counts
}
