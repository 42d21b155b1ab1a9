// Package session tracks which live connections belong to which identity.
// One identity may hold any number of connections (tabs, devices).
package session

import (
	"sync"

	"github.com/ageniuscoder/chatsphere/backend/internal/shard"
	"github.com/samber/lo"
)

// Conn is a live client connection as seen by the registries and the broadcaster.
type Conn interface {
	ID() string
	UserID() int64
	// Deliver queues payload for the connection without blocking and reports
	// whether it was accepted.
	Deliver(payload []byte) bool
}

type userBucket struct {
	mu     sync.RWMutex
	byUser map[int64]map[string]Conn
}

type ownerBucket struct {
	mu    sync.Mutex
	owner map[string]int64
}

// Registry maps identities to connection sets. Users and connections are
// partitioned into shards so unrelated identities never share a lock.
type Registry struct {
	users  [shard.Count]*userBucket
	owners [shard.Count]*ownerBucket
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.users {
		r.users[i] = &userBucket{byUser: make(map[int64]map[string]Conn)}
		r.owners[i] = &ownerBucket{owner: make(map[string]int64)}
	}
	return r
}

// Bind adds conn under userID. Binding a connection again under another
// identity moves it.
func (r *Registry) Bind(userID int64, conn Conn) {
	ob := r.owners[shard.OfString(conn.ID())]
	ob.mu.Lock()
	prev, had := ob.owner[conn.ID()]
	ob.owner[conn.ID()] = userID
	ob.mu.Unlock()

	if had && prev != userID {
		r.remove(prev, conn.ID())
	}

	ub := r.users[shard.OfInt(userID)]
	ub.mu.Lock()
	defer ub.mu.Unlock()
	set, ok := ub.byUser[userID]
	if !ok {
		set = make(map[string]Conn)
		ub.byUser[userID] = set
	}
	set[conn.ID()] = conn
}

// Unbind removes conn and prunes its identity once no connection is left.
// Unbinding an unknown connection is a no-op.
func (r *Registry) Unbind(conn Conn) {
	ob := r.owners[shard.OfString(conn.ID())]
	ob.mu.Lock()
	userID, ok := ob.owner[conn.ID()]
	delete(ob.owner, conn.ID())
	ob.mu.Unlock()
	if ok {
		r.remove(userID, conn.ID())
	}
}

func (r *Registry) remove(userID int64, connID string) {
	ub := r.users[shard.OfInt(userID)]
	ub.mu.Lock()
	defer ub.mu.Unlock()
	set, ok := ub.byUser[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(ub.byUser, userID)
	}
}

// ConnectionsFor returns a snapshot of userID's connections; empty when unknown.
func (r *Registry) ConnectionsFor(userID int64) []Conn {
	ub := r.users[shard.OfInt(userID)]
	ub.mu.RLock()
	defer ub.mu.RUnlock()
	return lo.Values(ub.byUser[userID])
}

// IsBound reports whether conn is currently registered.
func (r *Registry) IsBound(conn Conn) bool {
	ob := r.owners[shard.OfString(conn.ID())]
	ob.mu.Lock()
	defer ob.mu.Unlock()
	_, ok := ob.owner[conn.ID()]
	return ok
}

// Online reports whether userID holds at least one connection.
func (r *Registry) Online(userID int64) bool {
	ub := r.users[shard.OfInt(userID)]
	ub.mu.RLock()
	defer ub.mu.RUnlock()
	return len(ub.byUser[userID]) > 0
}

// Len is the number of identities with at least one connection.
func (r *Registry) Len() int {
	n := 0
	for _, ub := range r.users {
		ub.mu.RLock()
		n += len(ub.byUser)
		ub.mu.RUnlock()
	}
	return n
}
