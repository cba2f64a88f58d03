package realtime

import (
	"hash/fnv"
	"sync"
	"time"
)

// registryShards is the number of project-index shards. A prime-ish
// power of two keeps the FNV distribution even.
const registryShards = 32

// Subscription records one connection's membership in one project feed.
type Subscription struct {
	ConnectionID string    `json:"connection_id"`
	ProjectID    string    `json:"project_id"`
	JoinedAt     time.Time `json:"joined_at"`
}

type registryShard struct {
	mu       sync.RWMutex
	projects map[string]map[string]*Session // project_id -> connection_id -> session
}

// Registry tracks which live connections are subscribed to which
// projects. The project index is sharded by project_id so reading one
// project's subscribers never blocks subscribe/unsubscribe traffic on
// unrelated projects. A per-connection reverse index makes disconnect
// cleanup proportional to that connection's own subscriptions.
type Registry struct {
	shards [registryShards]registryShard

	connMu sync.Mutex
	conns  map[string]map[string]time.Time // connection_id -> project_id -> joined_at
}

// NewRegistry returns an empty registry. One registry is created at
// process start and injected into both the webhook path and the
// connection-acceptance path.
func NewRegistry() *Registry {
	r := &Registry{conns: make(map[string]map[string]time.Time)}
	for i := range r.shards {
		r.shards[i].projects = make(map[string]map[string]*Session)
	}
	return r
}

func (r *Registry) shard(projectID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(projectID))
	return &r.shards[h.Sum32()%registryShards]
}

// Subscribe runs the authorization check and, only on success, records
// the subscription. A connection holds at most one subscription per
// project; re-subscribing is a no-op. Subscribing a session that has
// already begun closing returns ErrSessionClosed and records nothing.
func (r *Registry) Subscribe(sess *Session, projectID string, authorize func() bool) error {
	if authorize != nil && !authorize() {
		return ErrAuthorizationDenied
	}

	now := time.Now().UTC()

	r.connMu.Lock()
	projs, ok := r.conns[sess.ID]
	if !ok {
		projs = make(map[string]time.Time)
		r.conns[sess.ID] = projs
	}
	if _, ok := projs[projectID]; !ok {
		projs[projectID] = now
	}
	r.connMu.Unlock()

	sh := r.shard(projectID)
	sh.mu.Lock()
	conns, ok := sh.projects[projectID]
	if !ok {
		conns = make(map[string]*Session)
		sh.projects[projectID] = conns
	}
	conns[sess.ID] = sess
	sh.mu.Unlock()

	// The session's disconnect cleanup runs after it reaches Closed, so
	// a teardown racing these inserts can scan the reverse index before
	// either landed. Re-checking the state after both inserts closes
	// that window: a close that started earlier is visible here, and a
	// close that starts later will see the committed entries.
	if st := sess.State(); st == StateClosing || st == StateClosed {
		r.Unsubscribe(sess.ID, projectID)
		return ErrSessionClosed
	}

	return nil
}

// Unsubscribe removes one subscription. Idempotent; absent entries are
// not an error.
func (r *Registry) Unsubscribe(connectionID, projectID string) {
	sh := r.shard(projectID)
	sh.mu.Lock()
	if conns, ok := sh.projects[projectID]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(sh.projects, projectID)
		}
	}
	sh.mu.Unlock()

	r.connMu.Lock()
	if projs, ok := r.conns[connectionID]; ok {
		delete(projs, projectID)
		if len(projs) == 0 {
			delete(r.conns, connectionID)
		}
	}
	r.connMu.Unlock()
}

// UnsubscribeAll removes every subscription held by a connection.
// Called on disconnect; cost is proportional to the connection's own
// subscription count, not the registry size.
func (r *Registry) UnsubscribeAll(connectionID string) {
	r.connMu.Lock()
	projs := r.conns[connectionID]
	delete(r.conns, connectionID)
	r.connMu.Unlock()

	for projectID := range projs {
		sh := r.shard(projectID)
		sh.mu.Lock()
		if conns, ok := sh.projects[projectID]; ok {
			delete(conns, connectionID)
			if len(conns) == 0 {
				delete(sh.projects, projectID)
			}
		}
		sh.mu.Unlock()
	}
}

// SubscribersOf returns a snapshot of the sessions subscribed to a
// project at call time. Concurrent subscribe/unsubscribe during
// iteration of the result is safe: the slice is a copy.
func (r *Registry) SubscribersOf(projectID string) []*Session {
	sh := r.shard(projectID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	conns := sh.projects[projectID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(conns))
	for _, sess := range conns {
		out = append(out, sess)
	}
	return out
}

// Subscriptions returns the subscriptions held by one connection,
// for introspection endpoints.
func (r *Registry) Subscriptions(connectionID string) []Subscription {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	projs := r.conns[connectionID]
	if len(projs) == 0 {
		return nil
	}
	out := make([]Subscription, 0, len(projs))
	for projectID, joined := range projs {
		out = append(out, Subscription{
			ConnectionID: connectionID,
			ProjectID:    projectID,
			JoinedAt:     joined,
		})
	}
	return out
}
