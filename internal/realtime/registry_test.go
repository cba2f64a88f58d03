package realtime

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func openSession(id string) *Session {
	sess := NewSession(id, "", &fakeTransport{}, SessionConfig{}, nil)
	sess.Open()
	return sess
}

func TestRegistrySubscribe(t *testing.T) {
	r := NewRegistry()
	sess := openSession("conn-1")
	defer sess.Close()

	if err := r.Subscribe(sess, "zy-p1", nil); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	subs := r.SubscribersOf("zy-p1")
	if len(subs) != 1 || subs[0].ID != "conn-1" {
		t.Fatalf("unexpected subscribers: %v", subs)
	}

	// Re-subscribing the same project is a no-op.
	if err := r.Subscribe(sess, "zy-p1", nil); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if got := len(r.SubscribersOf("zy-p1")); got != 1 {
		t.Fatalf("expected 1 subscriber after resubscribe, got %d", got)
	}
	if got := len(r.Subscriptions("conn-1")); got != 1 {
		t.Fatalf("expected 1 subscription record, got %d", got)
	}
}

func TestRegistryAuthorizationDenied(t *testing.T) {
	r := NewRegistry()
	sess := openSession("conn-1")
	defer sess.Close()

	err := r.Subscribe(sess, "zy-p1", func() bool { return false })
	if !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("expected ErrAuthorizationDenied, got %v", err)
	}
	// A denied subscribe must leave no trace.
	if got := len(r.SubscribersOf("zy-p1")); got != 0 {
		t.Fatalf("expected no subscribers, got %d", got)
	}
	if got := len(r.Subscriptions("conn-1")); got != 0 {
		t.Fatalf("expected no subscriptions, got %d", got)
	}
}

func TestRegistryUnsubscribe(t *testing.T) {
	r := NewRegistry()
	sess := openSession("conn-1")
	defer sess.Close()

	_ = r.Subscribe(sess, "zy-p1", nil)
	_ = r.Subscribe(sess, "zy-p2", nil)

	r.Unsubscribe("conn-1", "zy-p1")
	if got := len(r.SubscribersOf("zy-p1")); got != 0 {
		t.Fatalf("expected no p1 subscribers, got %d", got)
	}
	if got := len(r.SubscribersOf("zy-p2")); got != 1 {
		t.Fatalf("expected p2 subscription to survive, got %d", got)
	}

	// Unknown entries are not an error.
	r.Unsubscribe("conn-1", "zy-p1")
	r.Unsubscribe("conn-ghost", "zy-p1")
}

func TestRegistryUnsubscribeAll(t *testing.T) {
	r := NewRegistry()
	sess := openSession("conn-1")
	other := openSession("conn-2")
	defer sess.Close()
	defer other.Close()

	projects := make([]string, 40)
	for i := range projects {
		projects[i] = fmt.Sprintf("zy-p%02d", i)
		_ = r.Subscribe(sess, projects[i], nil)
	}
	_ = r.Subscribe(other, "zy-p00", nil)

	r.UnsubscribeAll("conn-1")

	for _, pid := range projects {
		for _, s := range r.SubscribersOf(pid) {
			if s.ID == "conn-1" {
				t.Fatalf("conn-1 still subscribed to %s", pid)
			}
		}
	}
	if got := len(r.Subscriptions("conn-1")); got != 0 {
		t.Fatalf("expected no subscription records, got %d", got)
	}
	// The other connection is untouched.
	if got := len(r.SubscribersOf("zy-p00")); got != 1 {
		t.Fatalf("expected conn-2 to survive, got %d subscribers", got)
	}
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	sess := openSession("conn-1")
	defer sess.Close()
	_ = r.Subscribe(sess, "zy-p1", nil)

	snap := r.SubscribersOf("zy-p1")
	r.Unsubscribe("conn-1", "zy-p1")
	if len(snap) != 1 {
		t.Fatal("snapshot mutated by later unsubscribe")
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := openSession(fmt.Sprintf("conn-%d", i))
			defer sess.Close()
			for j := range 100 {
				pid := fmt.Sprintf("zy-p%d", j%5)
				_ = r.Subscribe(sess, pid, nil)
				r.SubscribersOf(pid)
				r.Unsubscribe(sess.ID, pid)
			}
			r.UnsubscribeAll(sess.ID)
		}()
	}
	wg.Wait()

	for j := range 5 {
		pid := fmt.Sprintf("zy-p%d", j)
		if got := len(r.SubscribersOf(pid)); got != 0 {
			t.Fatalf("expected empty registry for %s, got %d", pid, got)
		}
	}
}

func TestRegistrySubscribeClosedSession(t *testing.T) {
	r := NewRegistry()
	sess := openSession("conn-1")
	sess.Close()

	err := r.Subscribe(sess, "zy-p1", nil)
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if got := len(r.SubscribersOf("zy-p1")); got != 0 {
		t.Fatalf("expected no subscribers, got %d", got)
	}
	if got := len(r.Subscriptions("conn-1")); got != 0 {
		t.Fatalf("expected no subscriptions, got %d", got)
	}
}

func TestRegistrySubscribeCloseRace(t *testing.T) {
	// A teardown landing between Subscribe's two index writes must not
	// leave the closed session behind on a quiet project.
	for i := range 200 {
		r := NewRegistry()
		sess := NewSession(fmt.Sprintf("conn-%d", i), "", &fakeTransport{}, SessionConfig{}, func(closed *Session) {
			r.UnsubscribeAll(closed.ID)
		})
		sess.Open()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Subscribe(sess, "zy-p1", nil)
		}()
		go func() {
			defer wg.Done()
			sess.Close()
		}()
		wg.Wait()

		if got := len(r.SubscribersOf("zy-p1")); got != 0 {
			t.Fatalf("iteration %d: closed session left in project index", i)
		}
		if got := len(r.Subscriptions(sess.ID)); got != 0 {
			t.Fatalf("iteration %d: closed session left in reverse index", i)
		}
	}
}
