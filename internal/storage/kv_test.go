package storage

import (
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *KV {
	t.Helper()
	kv, err := Open(filepath.Join(t.TempDir(), "dexlink.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestKV_RoundTrip(t *testing.T) {
	kv := openTemp(t)

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := kv.Set("settings/slot", []byte(`"RedsDex"`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := kv.Get("settings/slot")
	if err != nil || !ok || string(b) != `"RedsDex"` {
		t.Fatalf("get: %q ok=%v err=%v", b, ok, err)
	}
	if err := kv.Set("settings/slot", []byte(`"BluesDex"`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	b, _, _ = kv.Get("settings/slot")
	if string(b) != `"BluesDex"` {
		t.Fatalf("overwrite not applied: %q", b)
	}
	if err := kv.Remove("settings/slot"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := kv.Get("settings/slot"); ok {
		t.Fatalf("removed key still present")
	}
}

func TestKV_JSONCorruptFallsBack(t *testing.T) {
	kv := openTemp(t)

	if err := kv.SetJSON("ledger/reveals", []int{4, 9}); err != nil {
		t.Fatalf("setjson: %v", err)
	}
	var out []int
	ok, err := kv.GetJSON("ledger/reveals", &out)
	if err != nil || !ok || len(out) != 2 {
		t.Fatalf("getjson: %v ok=%v err=%v", out, ok, err)
	}

	// Corrupt it. The store must discard, not crash.
	if err := kv.Set("ledger/reveals", []byte(`{truncated`)); err != nil {
		t.Fatalf("set corrupt: %v", err)
	}
	out = nil
	ok, err = kv.GetJSON("ledger/reveals", &out)
	if err != nil || ok {
		t.Fatalf("corrupt value should read as absent: ok=%v err=%v", ok, err)
	}
	if _, present, _ := kv.Get("ledger/reveals"); present {
		t.Fatalf("corrupt value should be removed")
	}
}

func TestKV_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dexlink.db")
	kv, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := kv.Set("k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = kv.Close()

	kv2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv2.Close()
	b, ok, err := kv2.Get("k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("persisted value lost: %q ok=%v err=%v", b, ok, err)
	}
}
