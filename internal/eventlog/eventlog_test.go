package eventlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestJournal_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)

	entries := []Entry{
		{Kind: "connect", Detail: "v1 offsets"},
		{Kind: "item", Local: 25, Network: 3_920_025, ItemKind: "creature"},
		{Kind: "check", Local: 2001, Network: 3_922_001},
	}
	for _, e := range entries {
		if err := j.Record(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "sessions", "session-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("journal files: %v err=%v", files, err)
	}
	got, err := ReadAll(files[0])
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].Kind != entries[i].Kind || got[i].Local != entries[i].Local {
			t.Fatalf("entry %d mismatch: %+v vs %+v", i, got[i], entries[i])
		}
		if got[i].At == "" {
			t.Fatalf("entry %d missing timestamp", i)
		}
	}
}

func TestJournal_AppendAcrossReopens(t *testing.T) {
	dir := t.TempDir()

	j := NewJournal(dir)
	if err := j.Record(Entry{Kind: "connect"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A restart within the same hour appends a fresh frame to the
	// same file; both frames must decode.
	j = NewJournal(dir)
	if err := j.Record(Entry{Kind: "disconnect"}); err != nil {
		t.Fatalf("record after reopen: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close after reopen: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "sessions", "session-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("journal files: %v err=%v", files, err)
	}
	got, err := ReadAll(files[0])
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	if len(got) != 2 || got[0].Kind != "connect" || got[1].Kind != "disconnect" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestJournal_NilSafe(t *testing.T) {
	var j *Journal
	if err := j.Record(Entry{Kind: "item"}); err != nil {
		t.Fatalf("nil journal should no-op: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestReadAll_MissingFile(t *testing.T) {
	if _, err := ReadAll(filepath.Join(t.TempDir(), "nope.jsonl.zst")); !os.IsNotExist(err) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}
