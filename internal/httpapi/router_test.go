package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/arashiyama/supervisr/internal/history"
	"github.com/arashiyama/supervisr/internal/program"
	"github.com/arashiyama/supervisr/internal/supervisor"
)

func testSupervisor(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	ext := make(chan supervisor.Instruction, 4)
	var reload atomic.Bool
	cfgs := map[string]program.Config{
		"web": {Cmd: []string{"sleep", "1"}, NumProcs: 2},
	}
	load := func() (map[string]program.Config, error) { return cfgs, nil }
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := supervisor.New(cfgs, ext, ext, &reload, load, log, history.NopSink{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestHandleStatusReturnsSnapshot(t *testing.T) {
	sup := testSupervisor(t)
	h := NewRouter(sup).Handler()

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var views []supervisor.ChildView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2 (numprocs=2)", len(views))
	}
}

func TestHandleStatusOneFiltersByProgram(t *testing.T) {
	sup := testSupervisor(t)
	h := NewRouter(sup).Handler()

	req := httptest.NewRequest("GET", "/status/web", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var views []supervisor.ChildView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, v := range views {
		if v.ProgramName != "web" {
			t.Fatalf("unexpected program in filtered result: %#v", v)
		}
	}
}

func TestHandleStatusOneUnknownProgram(t *testing.T) {
	sup := testSupervisor(t)
	h := NewRouter(sup).Handler()

	req := httptest.NewRequest("GET", "/status/nonexistent", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
