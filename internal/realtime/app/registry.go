package app

import (
	"hash/fnv"
	"sync"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/pkg/logger"

	"go.uber.org/zap"
)

// Sender is the registry's view of a live connection: a stable id and a
// non-blocking push. Keeping it an interface keeps the registry and the
// routing code off the websocket types.
type Sender interface {
	ID() string
	Push(resp domain.WSResponse) error
}

// registryShards bucket count for the per-user maps. Connect/disconnect
// storms spread over the buckets instead of serializing on one lock.
const registryShards = 16

type registryShard struct {
	mu    sync.RWMutex
	conns map[string]map[string]Sender // userID -> connID -> Sender
}

// ConnRegistry maps user ids to their live connections and back. One
// instance per process, handed to the binder, router and broadcaster.
// The registry never closes a connection, the transport owns that.
type ConnRegistry struct {
	shards [registryShards]*registryShard

	// ownersMu serializes Bind/Unbind. Lock order is always owners
	// before shard, and never two shards at once.
	ownersMu sync.Mutex
	owners   map[string]string // connID -> userID
}

// NewConnRegistry create a ConnRegistry
func NewConnRegistry() *ConnRegistry {
	r := &ConnRegistry{
		owners: make(map[string]string),
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{conns: make(map[string]map[string]Sender)}
	}
	return r
}

func (r *ConnRegistry) shardFor(userID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return r.shards[h.Sum32()%registryShards]
}

// Bind associate a connection with a user id. Idempotent. A connection
// already bound to a different user is moved, which correct clients never
// trigger, so it gets logged as an anomaly.
func (r *ConnRegistry) Bind(conn Sender, userID string) {
	connID := conn.ID()

	r.ownersMu.Lock()
	defer r.ownersMu.Unlock()

	if prev, ok := r.owners[connID]; ok && prev != userID {
		logger.Log.Warn("connection rebound to a different user",
			zap.String("connID", connID),
			zap.String("previousUserID", prev),
			zap.String("userID", userID),
		)
		r.removeFromShard(prev, connID)
	}
	r.owners[connID] = userID

	shard := r.shardFor(userID)
	shard.mu.Lock()
	if shard.conns[userID] == nil {
		shard.conns[userID] = make(map[string]Sender)
	}
	shard.conns[userID][connID] = conn
	shard.mu.Unlock()
}

// Unbind drop a connection from whatever user owns it. A connection that
// was never bound, or was already unbound, is a no-op so duplicate close
// events stay harmless.
func (r *ConnRegistry) Unbind(connID string) {
	r.ownersMu.Lock()
	defer r.ownersMu.Unlock()

	userID, ok := r.owners[connID]
	if !ok {
		return
	}
	delete(r.owners, connID)
	r.removeFromShard(userID, connID)
}

// removeFromShard caller holds ownersMu
func (r *ConnRegistry) removeFromShard(userID, connID string) {
	shard := r.shardFor(userID)
	shard.mu.Lock()
	if conns, ok := shard.conns[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(shard.conns, userID)
		}
	}
	shard.mu.Unlock()
}

// ConnectionsFor return a snapshot of the user's live connections. Empty
// means deliver nothing live, it is not an error. Callers iterate the
// copy, so a disconnect racing the fan-out cannot corrupt iteration.
func (r *ConnRegistry) ConnectionsFor(userID string) []Sender {
	shard := r.shardFor(userID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	conns, ok := shard.conns[userID]
	if !ok {
		return nil
	}
	out := make([]Sender, 0, len(conns))
	for _, s := range conns {
		out = append(out, s)
	}
	return out
}

// OwnerOf return the user id a connection is bound to
func (r *ConnRegistry) OwnerOf(connID string) (string, bool) {
	r.ownersMu.Lock()
	defer r.ownersMu.Unlock()
	userID, ok := r.owners[connID]
	return userID, ok
}
