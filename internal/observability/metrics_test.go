package observability

import (
	"strings"
	"testing"
)

func TestRenderPrometheus(t *testing.T) {
	r := NewRegistry()
	r.IncCounter("agent_jobs_finished_total", map[string]string{"status": "completed"}, 2)
	r.SetGauge("agent_jobs_live", nil, 1)

	out := r.RenderPrometheus()
	if !strings.Contains(out, `agent_jobs_finished_total{status="completed"} 2`) {
		t.Fatalf("missing finished counter in output: %s", out)
	}
	if !strings.Contains(out, "agent_jobs_live 1") {
		t.Fatalf("missing live gauge in output: %s", out)
	}
}

func TestSnapshotSortedAndIsolated(t *testing.T) {
	r := NewRegistry()
	r.IncCounter("oauth_exchanges_total", map[string]string{"provider": "github"}, 1)
	r.IncCounter("agent_jobs_created_total", nil, 1)

	s := r.Snapshot()
	if len(s.Counters) != 2 {
		t.Fatalf("expected 2 counters got %d", len(s.Counters))
	}
	if s.Counters[0].Name != "agent_jobs_created_total" {
		t.Fatalf("expected sorted counters, got %s first", s.Counters[0].Name)
	}
	s.Counters[0].Labels = map[string]string{"mutated": "yes"}
	again := r.Snapshot()
	if len(again.Counters[0].Labels) != 0 {
		t.Fatalf("snapshot labels should be copies")
	}
}
