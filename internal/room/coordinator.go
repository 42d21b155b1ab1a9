// Package room keeps the per-chat membership of live connections. A connection
// may sit in any number of rooms; rooms exist only while they have members.
package room

import (
	"sync"

	"github.com/ageniuscoder/chatsphere/backend/internal/session"
	"github.com/ageniuscoder/chatsphere/backend/internal/shard"
	"github.com/samber/lo"
)

type roomBucket struct {
	mu      sync.RWMutex
	members map[int64]map[string]session.Conn
}

type connBucket struct {
	mu    sync.Mutex
	rooms map[string]map[int64]struct{}
}

type Coordinator struct {
	rooms [shard.Count]*roomBucket
	conns [shard.Count]*connBucket
}

func NewCoordinator() *Coordinator {
	c := &Coordinator{}
	for i := range c.rooms {
		c.rooms[i] = &roomBucket{members: make(map[int64]map[string]session.Conn)}
		c.conns[i] = &connBucket{rooms: make(map[string]map[int64]struct{})}
	}
	return c
}

func (c *Coordinator) Join(conn session.Conn, roomID int64) {
	rb := c.rooms[shard.OfInt(roomID)]
	rb.mu.Lock()
	set, ok := rb.members[roomID]
	if !ok {
		set = make(map[string]session.Conn)
		rb.members[roomID] = set
	}
	set[conn.ID()] = conn
	rb.mu.Unlock()

	cb := c.conns[shard.OfString(conn.ID())]
	cb.mu.Lock()
	defer cb.mu.Unlock()
	joined, ok := cb.rooms[conn.ID()]
	if !ok {
		joined = make(map[int64]struct{})
		cb.rooms[conn.ID()] = joined
	}
	joined[roomID] = struct{}{}
}

func (c *Coordinator) Leave(conn session.Conn, roomID int64) {
	c.removeMember(conn.ID(), roomID)

	cb := c.conns[shard.OfString(conn.ID())]
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if joined, ok := cb.rooms[conn.ID()]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(cb.rooms, conn.ID())
		}
	}
}

// LeaveAll drops conn from every room it joined.
func (c *Coordinator) LeaveAll(conn session.Conn) {
	cb := c.conns[shard.OfString(conn.ID())]
	cb.mu.Lock()
	joined := lo.Keys(cb.rooms[conn.ID()])
	delete(cb.rooms, conn.ID())
	cb.mu.Unlock()

	for _, roomID := range joined {
		c.removeMember(conn.ID(), roomID)
	}
}

func (c *Coordinator) removeMember(connID string, roomID int64) {
	rb := c.rooms[shard.OfInt(roomID)]
	rb.mu.Lock()
	defer rb.mu.Unlock()
	set, ok := rb.members[roomID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(rb.members, roomID)
	}
}

// MembersOf returns a snapshot of the connections in roomID.
func (c *Coordinator) MembersOf(roomID int64) []session.Conn {
	rb := c.rooms[shard.OfInt(roomID)]
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return lo.Values(rb.members[roomID])
}

// RoomsOf lists the rooms conn has joined.
func (c *Coordinator) RoomsOf(conn session.Conn) []int64 {
	cb := c.conns[shard.OfString(conn.ID())]
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return lo.Keys(cb.rooms[conn.ID()])
}

// Len is the number of non-empty rooms.
func (c *Coordinator) Len() int {
	n := 0
	for _, rb := range c.rooms {
		rb.mu.RLock()
		n += len(rb.members)
		rb.mu.RUnlock()
	}
	return n
}
