// Package source provides segment source adapters for the compaction
// engine. The filesystem adapter enumerates hour-partitioned capture
// directories; other backends only need to satisfy model.SegmentSource.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"NetDistill/internal/model"
)

// FilesystemSource lists capture segments from a directory tree laid out as
//
//	<root>/<YYYY>/<MM>/<DD>/<HH>/*.pcap[.gz|.zst]
//
// (pcapng variants included). The codec is inferred from the file suffix;
// the decoder double-checks magic bytes when the segment is opened.
type FilesystemSource struct {
	Root string
}

// NewFilesystemSource points a source at a capture root directory.
func NewFilesystemSource(root string) *FilesystemSource {
	return &FilesystemSource{Root: root}
}

// ListSegments returns the segments of the hour directory containing
// hourStart, in sorted path order so replays are deterministic. A missing
// hour directory yields an empty list; an unreachable root is fatal.
func (s *FilesystemSource) ListSegments(hourStart, hourEnd int64) ([]model.SegmentDescriptor, error) {
	if _, err := os.Stat(s.Root); err != nil {
		return nil, &model.SourceUnavailableError{Err: err}
	}

	t := time.Unix(hourStart, 0).UTC()
	hourDir := filepath.Join(s.Root,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
		fmt.Sprintf("%02d", t.Hour()),
	)

	entries, err := os.ReadDir(hourDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &model.SourceUnavailableError{Err: err}
	}

	var segs []model.SegmentDescriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		codec, ok := codecForName(e.Name())
		if !ok {
			continue
		}
		segs = append(segs, model.SegmentDescriptor{
			Path:  filepath.Join(hourDir, e.Name()),
			Codec: codec,
		})
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].Path < segs[j].Path })
	return segs, nil
}

// codecForName infers the compression codec from a segment filename, and
// whether the file looks like a capture segment at all.
func codecForName(name string) (model.Codec, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pcap.gz"), strings.HasSuffix(lower, ".pcapng.gz"):
		return model.CodecGzip, true
	case strings.HasSuffix(lower, ".pcap.zst"), strings.HasSuffix(lower, ".pcapng.zst"):
		return model.CodecZstd, true
	case strings.HasSuffix(lower, ".pcap"), strings.HasSuffix(lower, ".pcapng"):
		return model.CodecNone, true
	}
	return "", false
}
