// Package segment decodes capture segments (pcap or pcapng, optionally
// gzip- or zstd-compressed) into minimal packet records. Decoding streams:
// a segment is never materialized in memory.
package segment

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/klauspost/compress/zstd"

	"NetDistill/internal/model"
)

// pcap and pcapng magic numbers, as they appear on disk.
var pcapMagics = [][4]byte{
	{0xa1, 0xb2, 0xc3, 0xd4}, // usec, big endian
	{0xd4, 0xc3, 0xb2, 0xa1}, // usec, little endian
	{0xa1, 0xb2, 0x3c, 0x4d}, // nsec, big endian
	{0x4d, 0x3c, 0xb2, 0xa1}, // nsec, little endian
}

var pcapngMagic = [4]byte{0x0a, 0x0d, 0x0d, 0x0a}

// Reader yields PacketRecords from one capture segment. It is a finite,
// non-restartable sequence: decoding is sequential over the byte stream.
type Reader struct {
	source     *gopacket.PacketSource
	closers    []io.Closer
	decodeErrs uint64
}

// Open prepares a streaming reader for the given segment. The codec declared
// by the descriptor selects the decompressor; the capture format (pcap vs
// pcapng) is sniffed from the stream head.
func Open(desc model.SegmentDescriptor) (*Reader, error) {
	f, err := os.Open(desc.Path)
	if err != nil {
		return nil, &model.SegmentDecodeError{Path: desc.Path, Err: err}
	}

	r := &Reader{closers: []io.Closer{f}}

	var stream io.Reader = f
	switch desc.Codec {
	case model.CodecNone, "":
		// raw capture bytes
	case model.CodecGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			r.Close()
			return nil, &model.SegmentDecodeError{Path: desc.Path, Err: err}
		}
		r.closers = append(r.closers, gz)
		stream = gz
	case model.CodecZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			r.Close()
			return nil, &model.SegmentDecodeError{Path: desc.Path, Err: err}
		}
		rc := zr.IOReadCloser()
		r.closers = append(r.closers, rc)
		stream = rc
	default:
		r.Close()
		return nil, &model.SegmentDecodeError{Path: desc.Path, Err: fmt.Errorf("unknown codec %q", desc.Codec)}
	}

	buffered := bufio.NewReader(stream)
	head, err := buffered.Peek(4)
	if err != nil {
		r.Close()
		return nil, &model.SegmentDecodeError{Path: desc.Path, Err: fmt.Errorf("failed to read magic: %w", err)}
	}

	switch {
	case isPcapngMagic(head):
		ng, err := pcapgo.NewNgReader(buffered, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			r.Close()
			return nil, &model.SegmentDecodeError{Path: desc.Path, Err: err}
		}
		r.source = gopacket.NewPacketSource(ng, ng.LinkType())
	case isPcapMagic(head):
		pr, err := pcapgo.NewReader(buffered)
		if err != nil {
			r.Close()
			return nil, &model.SegmentDecodeError{Path: desc.Path, Err: err}
		}
		r.source = gopacket.NewPacketSource(pr, pr.LinkType())
	default:
		r.Close()
		return nil, &model.SegmentDecodeError{Path: desc.Path, Err: fmt.Errorf("not a pcap or pcapng stream")}
	}

	return r, nil
}

// Next returns the next TCP or UDP packet of the segment. It skips malformed
// frames (counted) and non-IP traffic (silently) and returns io.EOF when the
// segment is exhausted.
func (r *Reader) Next() (*model.PacketRecord, error) {
	for {
		packet, err := r.source.NextPacket()
		if err != nil {
			if err != io.EOF {
				// A stream-level read error (truncated tail, bad record
				// header) cannot be resynced; count it and end the segment.
				r.decodeErrs++
			}
			return nil, io.EOF
		}
		if packet.ErrorLayer() != nil {
			r.decodeErrs++
			continue
		}
		rec, ok := parsePacket(packet)
		if !ok {
			continue
		}
		return rec, nil
	}
}

// DecodeErrors reports how many malformed frames were skipped so far.
func (r *Reader) DecodeErrors() uint64 {
	return r.decodeErrs
}

// Close releases the underlying file and decompressor.
func (r *Reader) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func isPcapMagic(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	for _, m := range pcapMagics {
		if head[0] == m[0] && head[1] == m[1] && head[2] == m[2] && head[3] == m[3] {
			return true
		}
	}
	return false
}

func isPcapngMagic(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	m := pcapngMagic
	return head[0] == m[0] && head[1] == m[1] && head[2] == m[2] && head[3] == m[3]
}
