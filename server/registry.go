// File: server/registry.go
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe index of live sessions across workers. Workers own
// their sessions; the registry only holds immutable descriptions for
// inspection from other goroutines.

package server

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionInfo describes one live session.
type SessionInfo struct {
	ID       uuid.UUID
	Peer     string
	Listener string
	Worker   int
	Secure   bool
	Since    time.Time
}

type registry struct {
	shards []*registryShard
	mask   uint32
}

type registryShard struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]SessionInfo
}

// newRegistry constructs a registry with shardCount shards, rounded up to a
// power of two.
func newRegistry(shardCount int) *registry {
	if shardCount <= 0 {
		shardCount = 16
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*registryShard, m)
	for i := range shards {
		shards[i] = &registryShard{sessions: make(map[uuid.UUID]SessionInfo)}
	}
	return &registry{shards: shards, mask: m - 1}
}

func (r *registry) shard(id uuid.UUID) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return r.shards[h.Sum32()&r.mask]
}

func (r *registry) add(info SessionInfo) {
	sh := r.shard(info.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sessions[info.ID] = info
}

func (r *registry) remove(id uuid.UUID) {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, id)
}

func (r *registry) get(id uuid.UUID) (SessionInfo, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	info, ok := sh.sessions[id]
	return info, ok
}

func (r *registry) len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// snapshot copies every entry.
func (r *registry) snapshot() []SessionInfo {
	var out []SessionInfo
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, info := range sh.sessions {
			out = append(out, info)
		}
		sh.mu.RUnlock()
	}
	return out
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
