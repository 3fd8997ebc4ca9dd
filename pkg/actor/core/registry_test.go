package core

import "testing"

func Test_Registry_RegisterAndWhereIs(t *testing.T) {
	r := NewRegistry()
	p := pid("n1", 1)
	r.Register("worker", p)

	got, ok := r.WhereIs("worker")
	if !ok || got != p {
		t.Fatalf("expected worker -> %v, got %v ok=%v", p, got, ok)
	}
}

func Test_Registry_RegisterReplacesPriorHolder(t *testing.T) {
	r := NewRegistry()
	first := pid("n1", 1)
	second := pid("n1", 2)

	r.Register("worker", first)
	r.Register("worker", second)

	got, ok := r.WhereIs("worker")
	if !ok || got != second {
		t.Fatalf("expected worker -> %v after replace, got %v", second, got)
	}
	if labels := r.OnDeath(first); len(labels) != 0 {
		t.Errorf("expected first holder to have no remaining labels, got %v", labels)
	}
}

func Test_Registry_UnregisterRemovesLabel(t *testing.T) {
	r := NewRegistry()
	p := pid("n1", 1)
	r.Register("worker", p)
	r.Unregister("worker")

	if _, ok := r.WhereIs("worker"); ok {
		t.Error("expected worker to be unregistered")
	}
}

func Test_Registry_UnregisterUnknownLabelIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unregister("never-registered")
}

func Test_Registry_OnDeathRemovesEveryLabelForPid(t *testing.T) {
	r := NewRegistry()
	p := pid("n1", 1)
	r.Register("a", p)
	r.Register("b", p)

	labels := r.OnDeath(p)
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels removed, got %v", labels)
	}
	if _, ok := r.WhereIs("a"); ok {
		t.Error("expected label a to be gone after death")
	}
	if _, ok := r.WhereIs("b"); ok {
		t.Error("expected label b to be gone after death")
	}
}
