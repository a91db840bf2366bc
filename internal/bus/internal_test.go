package bus

import (
	"errors"
	"slices"
	"testing"
)

func TestRegistry_ActivateKeepsRegistrationOrder(t *testing.T) {
	var r registry
	r.addActive("a")
	r.addPending("b")
	r.addPending("c")

	if got := r.activate(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("activate() = %v, want [a b c]", got)
	}
	if len(r.pending) != 0 {
		t.Errorf("pending = %v, want empty", r.pending)
	}
	if got := r.activate(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("second activate() = %v, want [a b c]", got)
	}
}

func TestRegistry_Remove(t *testing.T) {
	var r registry
	r.addActive("a")
	r.addPending("b")

	if !r.remove("a") {
		t.Error("remove(a) = false, want true")
	}
	if r.remove("b") {
		t.Error("remove(b) = true for a pending pattern")
	}
	if r.contains("a") || r.contains("b") {
		t.Error("patterns still registered after remove")
	}
}

func TestRegistry_FirstMatch(t *testing.T) {
	var r registry
	r.addActive("egeoffrey/v1/+/+/+/myModule/worker/#")
	r.addActive("egeoffrey/v1/#")

	got, ok := r.firstMatch("egeoffrey/v1/house1/a/b/myModule/worker/RUN/null")
	if !ok || got != "egeoffrey/v1/+/+/+/myModule/worker/#" {
		t.Errorf("firstMatch() = %q, %v", got, ok)
	}
	got, ok = r.firstMatch("egeoffrey/v1/house1/a/b/c/d/RUN/null")
	if !ok || got != "egeoffrey/v1/#" {
		t.Errorf("firstMatch() = %q, %v", got, ok)
	}
	if _, ok := r.firstMatch("other/v1/house1/a/b/c/d/RUN"); ok {
		t.Error("firstMatch() matched a foreign topic")
	}
}

func TestGate(t *testing.T) {
	g := newGate()
	if !g.configured {
		t.Fatal("new gate should be configured")
	}

	g.addMandatory("egeoffrey/v1/+/controller/config/m/n/CONF/1/a")
	g.addMandatory("egeoffrey/v1/+/controller/config/m/n/CONF/1/a")
	g.addMandatory("egeoffrey/v1/+/controller/config/m/n/CONF/1/b")
	if g.configured {
		t.Fatal("configured after addMandatory")
	}
	if len(g.waiting) != 2 {
		t.Errorf("waiting = %v, want 2 patterns", g.waiting)
	}

	if !g.mandatory("egeoffrey/v1/h/controller/config/m/n/CONF/1/b") {
		t.Error("mandatory(b) = false, want true")
	}
	if g.mandatory("egeoffrey/v1/h/controller/config/m/n/CONF/1/zzz") {
		t.Error("mandatory(zzz) = true, want false")
	}

	satisfied, completed := g.received("egeoffrey/v1/h/controller/config/m/n/CONF/1/zzz")
	if len(satisfied) != 0 || completed {
		t.Errorf("received(unrelated) = %v, %v", satisfied, completed)
	}

	satisfied, completed = g.received("egeoffrey/v1/h/controller/config/m/n/CONF/1/b")
	if len(satisfied) != 1 || completed {
		t.Errorf("received(b) = %v, %v, want one pattern, not completed", satisfied, completed)
	}

	satisfied, completed = g.received("egeoffrey/v1/h/controller/config/m/n/CONF/1/a")
	if len(satisfied) != 1 || !completed || !g.configured {
		t.Errorf("received(a) = %v, %v, want completion", satisfied, completed)
	}

	if _, completed := g.received("egeoffrey/v1/h/controller/config/m/n/CONF/1/a"); completed {
		t.Error("completion reported twice")
	}
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(2)

	for _, topic := range []string{"a", "b"} {
		if err := q.Push(Pending{Topic: topic}); err != nil {
			t.Fatalf("Push(%s) error = %v", topic, err)
		}
	}
	if err := q.Push(Pending{Topic: "c"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Push(c) error = %v, want ErrQueueFull", err)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}

	items, err := q.Drain()
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(items) != 2 || items[0].Topic != "a" || items[1].Topic != "b" {
		t.Errorf("Drain() = %+v, want [a b]", items)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", q.Len())
	}
}
