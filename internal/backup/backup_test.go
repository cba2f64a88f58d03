package backup

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes   atomic.Int64
	lastName atomic.Value // string
	lastData atomic.Value // []byte
}

func (d *mockDestination) Write(_ context.Context, name string, data []byte) error {
	d.writes.Add(1)
	d.lastName.Store(name)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.lastData.Store(cp)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	ms := seedStore()
	dest := &mockDestination{}

	sched := NewScheduler(ms, []Destination{dest}, 50*time.Millisecond, testLogger())
	sched.Start()

	// Wait for at least the initial snapshot plus one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}

	name, ok := dest.lastName.Load().(string)
	if !ok || !strings.HasSuffix(name, ".jsonl") {
		t.Fatalf("snapshot name = %q, want .jsonl suffix", name)
	}

	data, ok := dest.lastData.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	var hdr header
	if err := json.Unmarshal([]byte(nonEmptyLines(string(data))[0]), &hdr); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if hdr.ProjectCount != 2 {
		t.Errorf("project count = %d, want 2", hdr.ProjectCount)
	}
}

func TestSchedulerStopNoStart(t *testing.T) {
	sched := NewScheduler(newMockStore(), nil, time.Minute, testLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerMultipleDestinations(t *testing.T) {
	ms := newMockStore()
	dest1 := &mockDestination{}
	dest2 := &mockDestination{}

	sched := NewScheduler(ms, []Destination{dest1, dest2}, time.Second, testLogger())
	sched.Start()

	// Wait for the initial snapshot.
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if dest1.writes.Load() < 1 {
		t.Fatal("dest1 expected at least 1 write")
	}
	if dest2.writes.Load() < 1 {
		t.Fatal("dest2 expected at least 1 write")
	}
	name1, _ := dest1.lastName.Load().(string)
	name2, _ := dest2.lastName.Load().(string)
	if name1 != name2 {
		t.Errorf("destinations got different names: %q vs %q", name1, name2)
	}
}

func TestSnapshotNameIsUnique(t *testing.T) {
	now := time.Now()
	a := snapshotName(now)
	b := snapshotName(now)
	if a == b {
		t.Fatalf("snapshot names collide: %q", a)
	}
	for _, n := range []string{a, b} {
		if !strings.HasSuffix(n, ".jsonl") {
			t.Errorf("name %q missing .jsonl suffix", n)
		}
	}
}
