package device_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/garnizeh/jobcard/internal/device"
)

func TestNewID(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := device.NewID()
		if !device.Valid(id) {
			t.Fatalf("generated id %q is not valid", id)
		}
	}
}

func TestLoad_PersistsAndReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "device_id")

	first, err := device.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := device.Load(path)
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable id across loads, got %q then %q", first, second)
	}
}

func TestLoad_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_id")
	if err := os.WriteFile(path, []byte("not-an-id"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := device.Load(path); err == nil {
		t.Fatalf("expected error for corrupt device id file")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	id, err := device.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !device.Valid(id) {
		t.Fatalf("invalid ephemeral id %q", id)
	}
}
