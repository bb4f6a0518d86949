// Package hub is the in-process delivery router: it maps connected
// identities (and the reserved admin broadcast group) to live channels and
// fans events out to them. It is never a source of truth; a client that
// misses a push sees the message on its next fetch.
package hub

import "sync"

// GroupAdmins is the reserved broadcast group every admin connection joins,
// used to notify "any available admin".
const GroupAdmins = "admin"

// Event is a server-to-client push.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Channel is one live client connection. Push must not block; it reports
// whether the event was accepted.
type Channel interface {
	Push(ev Event) bool
}

// Hub holds only live-connection state and is rebuilt from reconnects after
// a restart.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Channel]struct{}
	groups  map[string]map[Channel]struct{}
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]map[Channel]struct{}),
		groups:  make(map[string]map[Channel]struct{}),
	}
}

// Register adds ch under identity. Admin channels additionally join the
// admin broadcast group. Returns true when this is the identity's first
// open channel.
func (h *Hub) Register(identity string, admin bool, ch Channel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[identity]
	if !ok {
		set = make(map[Channel]struct{})
		h.clients[identity] = set
	}
	first := len(set) == 0
	set[ch] = struct{}{}
	if admin {
		h.joinLocked(GroupAdmins, ch)
	}
	return first
}

// Unregister removes ch everywhere. Idempotent; returns true when identity
// has no channels left.
func (h *Hub) Unregister(identity string, ch Channel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[identity]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.clients, identity)
		}
	}
	for name, set := range h.groups {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.groups, name)
		}
	}
	_, still := h.clients[identity]
	return !still
}

// Join adds ch to a named group (client "join" bookkeeping).
func (h *Hub) Join(group string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(group, ch)
}

func (h *Hub) joinLocked(group string, ch Channel) {
	set, ok := h.groups[group]
	if !ok {
		set = make(map[Channel]struct{})
		h.groups[group] = set
	}
	set[ch] = struct{}{}
}

// Leave removes ch from a named group. No error if absent.
func (h *Hub) Leave(group string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.groups[group]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.groups, group)
		}
	}
}

// Deliver pushes ev to every open channel of each identity. Identities with
// no channel are skipped; delivery is at-most-once, best-effort.
func (h *Hub) Deliver(identities []string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range identities {
		for ch := range h.clients[id] {
			ch.Push(ev)
		}
	}
}

// DeliverToGroup pushes ev to every channel in the group.
func (h *Hub) DeliverToGroup(group string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.groups[group] {
		ch.Push(ev)
	}
}

// Broadcast pushes ev to every connected channel (presence announcements).
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for ch := range set {
			ch.Push(ev)
		}
	}
}

// Connected reports whether identity has at least one open channel.
func (h *Hub) Connected(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identity]) > 0
}
