package consumption

import (
	"bufio"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/ulikunitz/xz"
)

// ArchiveExt is the file extension of record archives.
const ArchiveExt = ".jsonl.xz"

// WriteArchive writes records as xz-compressed JSON lines, one record per
// line. It returns the number of records written.
func WriteArchive(w io.Writer, records []Record) (int, error) {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("create xz writer: %w", err)
	}
	enc := json.NewEncoder(zw)
	for i, r := range records {
		if err := enc.Encode(r); err != nil {
			_ = zw.Close()
			return i, fmt.Errorf("encode record %s: %w", r.ID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return len(records), fmt.Errorf("close xz stream: %w", err)
	}
	return len(records), nil
}

// ReadArchive reads an archive produced by WriteArchive.
func ReadArchive(r io.Reader) ([]Record, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xz stream: %w", err)
	}

	var out []Record
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("archive line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return out, nil
}
