// Package eventlog appends session reconciliation events to hourly
// rotated, zstd-compressed JSONL files. Local observability only; the
// server snapshot remains the source of truth.
package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry is one journal line.
type Entry struct {
	At       string `json:"at"`
	Kind     string `json:"kind"` // "item", "check", "trap", "connect", "disconnect"
	Local    int    `json:"local,omitempty"`
	Network  int64  `json:"network,omitempty"`
	ItemKind string `json:"item_kind,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Journal writes one Entry per reconciliation event. Files rotate on
// the UTC hour so a long-running client never grows a single
// unbounded log. A nil Journal swallows everything, so callers can
// skip the wiring in practice mode.
type Journal struct {
	dir string

	mu   sync.Mutex
	hour string
	f    *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
}

func NewJournal(dataDir string) *Journal {
	return &Journal{dir: filepath.Join(dataDir, "sessions")}
}

// Record stamps the entry if needed and appends it to the current
// hour's file, opening a new one when the hour rolled over.
func (j *Journal) Record(e Entry) error {
	if j == nil {
		return nil
	}
	if e.At == "" {
		e.At = time.Now().UTC().Format(time.RFC3339Nano)
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != j.hour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := j.buf.Write(line); err != nil {
		return err
	}
	if err := j.buf.WriteByte('\n'); err != nil {
		return err
	}
	// Flushed per entry: a crash loses at most the frame zstd is
	// still buffering, and appends stay valid as separate frames.
	return j.buf.Flush()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(j.dir, "session-"+hour+".jsonl.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.zw = zw
	j.buf = bufio.NewWriterSize(zw, 64*1024)
	j.hour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var errEnc error
	if j.buf != nil {
		_ = j.buf.Flush()
	}
	if j.zw != nil {
		errEnc = j.zw.Close()
		j.zw = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.buf = nil
	return errEnc
}

// ReadAll decodes every entry in one journal file, oldest first. Used
// by debugging tools and tests.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
