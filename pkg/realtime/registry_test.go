package realtime

import (
	"sort"
	"testing"
)

func TestRegistryRegisterResolve(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Resolve("u1"); ok {
		t.Fatal("expected no connection for unknown user")
	}

	r.Register("u1", "c1")
	connID, ok := r.Resolve("u1")
	if !ok || connID != "c1" {
		t.Fatalf("resolve after register: got (%q, %v), want (c1, true)", connID, ok)
	}

	// Last registration wins.
	r.Register("u1", "c2")
	connID, ok = r.Resolve("u1")
	if !ok || connID != "c2" {
		t.Fatalf("resolve after re-register: got (%q, %v), want (c2, true)", connID, ok)
	}
}

func TestRegistryUnregisterIdentityGuard(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1")
	r.Register("u1", "c2")

	// A stale disconnect for the superseded connection must not evict the
	// newer registration.
	r.Unregister("u1", "c1")
	if connID, ok := r.Resolve("u1"); !ok || connID != "c2" {
		t.Fatalf("stale unregister evicted newer connection: got (%q, %v)", connID, ok)
	}

	r.Unregister("u1", "c2")
	if _, ok := r.Resolve("u1"); ok {
		t.Fatal("expected user gone after matching unregister")
	}
}

func TestRegistryUnregisterUnknownUserIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unregister("ghost", "c1")
	if got := len(r.Online()); got != 0 {
		t.Fatalf("expected empty registry, got %d entries", got)
	}
}

func TestRegistryOnlineSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1")
	r.Register("u2", "c2")
	r.Register("u3", "c3")
	r.Unregister("u2", "c2")

	online := r.Online()
	sort.Strings(online)
	want := []string{"u1", "u3"}
	if len(online) != len(want) {
		t.Fatalf("online set: got %v, want %v", online, want)
	}
	for i := range want {
		if online[i] != want[i] {
			t.Fatalf("online set: got %v, want %v", online, want)
		}
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			r.Register("u1", "c1")
			r.Unregister("u1", "c1")
		}
	}()
	for i := 0; i < 1000; i++ {
		r.Resolve("u1")
		r.Online()
	}
	<-done
}
