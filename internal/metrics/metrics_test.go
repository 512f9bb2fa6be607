package metrics

import "testing"

func TestNewRegistersWithoutPanic(t *testing.T) {
	m := New()
	m.CommandsProcessed.WithLabelValues("GET").Inc()
	m.ConnectedClients.Set(3)
	m.KeyspaceHits.Inc()
	m.KeyspaceMisses.Inc()
	m.ExpiredKeys.Add(2)

	families, err := m.Reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family after recording values")
	}
}
