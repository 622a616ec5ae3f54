package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenEmptyPathUsesStderr(t *testing.T) {
	log, closer, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if closer != nil {
		t.Fatalf("expected nil closer for stderr logging")
	}
	if log == nil {
		t.Fatalf("expected non-nil logger")
	}
}

func TestOpenPlainFileTruncatesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.log")
	if err := os.WriteFile(path, []byte("stale content\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	log, closer, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closer.Close()

	log.Info("fresh event")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(data); len(got) == 0 {
		t.Fatalf("expected log file to contain the new entry")
	} else if got[0] == 's' {
		t.Fatalf("expected stale content to be truncated, got %q", got)
	}
}

func TestOpenRotationRequestedUsesLumberjack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.log")
	log, closer, err := Open(Config{Path: path, MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if closer == nil {
		t.Fatalf("expected a non-nil closer for rotation-backed logging")
	}
	log.Info("rotated event")
	closer.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file to be created: %v", err)
	}
}

func TestRotationRequested(t *testing.T) {
	if (Config{}).rotationRequested() {
		t.Fatalf("zero Config should not request rotation")
	}
	if !(Config{MaxSizeMB: 5}).rotationRequested() {
		t.Fatalf("MaxSizeMB>0 should request rotation")
	}
	if !(Config{Compress: true}).rotationRequested() {
		t.Fatalf("Compress=true should request rotation")
	}
}
