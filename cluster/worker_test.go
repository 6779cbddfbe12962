package cluster_test

import (
	"testing"
	"time"

	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/id"
)

func TestWorker_Stale(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w := &cluster.Worker{ID: id.NewWorkerID(), LastSeen: now.Add(-10 * time.Second)}

	if w.Stale(now, 30*time.Second) {
		t.Error("expected fresh record within ttl")
	}
	if !w.Stale(now, 5*time.Second) {
		t.Error("expected stale record past ttl")
	}
}

func TestSortByStart(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := &cluster.Worker{ID: id.NewWorkerID(), StartedAt: now}
	b := &cluster.Worker{ID: id.NewWorkerID(), StartedAt: now.Add(time.Second)}
	c := &cluster.Worker{ID: id.NewWorkerID(), StartedAt: now.Add(-time.Second)}

	ws := []*cluster.Worker{a, b, c}
	cluster.SortByStart(ws)

	want := []*cluster.Worker{c, a, b}
	for i := range want {
		if ws[i] != want[i] {
			t.Fatalf("ws[%d] = %s, want %s", i, ws[i].ID, want[i].ID)
		}
	}
}
