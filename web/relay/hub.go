// Package relay pairs call participants. Clients connect over WebSocket, join
// a room named after an appointment, and are told about each other so the
// browsers can start the peer-to-peer call.
package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/mhsanaei/csc-portal/logger"
)

// Admission decides whether a room may be joined. The appointment service
// satisfies it.
type Admission interface {
	CanJoinCall(ctx context.Context, roomId string) (bool, error)
}

type Options struct {
	// RoomCapacity is the most members a room holds.
	RoomCapacity int
	// NotifyLeave sends user-disconnected to the remaining members.
	NotifyLeave bool
	// SendBuffer is the per-client queue length; a full queue disconnects.
	SendBuffer int
	// Admission, when set, gates every join.
	Admission Admission
}

type member struct {
	client *Client
	userId ID
}

type room struct {
	id ID

	mu      sync.Mutex
	members []member // join order
	closed  bool
}

func (r *room) indexOf(c *Client) int {
	for i, m := range r.members {
		if m.client == c {
			return i
		}
	}
	return -1
}

// evictUser drops the member announced as userId, if any, and returns its
// client. A user holds one seat however many times they reconnect. Requires
// r.mu.
func (r *room) evictUser(userId ID) *Client {
	if userId == "" {
		return nil
	}
	for i, m := range r.members {
		if m.userId == userId {
			r.members = append(r.members[:i], r.members[i+1:]...)
			m.client.removeRoom(r.id)
			return m.client
		}
	}
	return nil
}

// Hub tracks rooms and connected clients.
type Hub struct {
	opts Options

	mu      sync.Mutex
	rooms   map[ID]*room
	clients map[*Client]struct{}

	connections atomic.Int64
	roomCount   atomic.Int64
	joins       atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func NewHub(opts Options) *Hub {
	if opts.RoomCapacity < 1 {
		opts.RoomCapacity = 2
	}
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		opts:    opts,
		rooms:   make(map[ID]*room),
		clients: make(map[*Client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Connections int64 `json:"connections"`
	Rooms       int64 `json:"rooms"`
	Joins       int64 `json:"joins"`
}

func (h *Hub) Stats() Stats {
	return Stats{
		Connections: h.connections.Load(),
		Rooms:       h.roomCount.Load(),
		Joins:       h.joins.Load(),
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return false
	}
	h.clients[c] = struct{}{}
	n := h.connections.Inc()
	logger.Debugf("relay client connected: %s (total: %d)", c.Id, n)
	return true
}

// Join adds c to a room and exchanges user-connected frames with the
// members already there.
func (h *Hub) Join(c *Client, roomId, userId ID) {
	if roomId == "" {
		logger.Debugf("relay client %s sent join without room id", c.Id)
		return
	}

	if h.opts.Admission != nil {
		ok, err := h.opts.Admission.CanJoinCall(h.ctx, string(roomId))
		if err != nil {
			logger.Debugf("relay admission check for room %s failed: %v", roomId, err)
		}
		if !ok {
			c.send(Frame{Event: EventJoinRejected, RoomId: roomId, Time: h.now().UnixMilli()})
			return
		}
	}

	for {
		r := h.getOrCreateRoom(roomId)

		r.mu.Lock()
		if r.closed {
			// emptied and removed between lookup and lock
			r.mu.Unlock()
			continue
		}
		ts := h.now().UnixMilli()
		if i := r.indexOf(c); i >= 0 {
			// re-announce: membership stays, peers are told again
			if userId == "" {
				userId = r.members[i].userId
			}
			for _, m := range r.members {
				if m.client != c {
					m.client.send(Frame{Event: EventUserConnected, RoomId: roomId, UserId: userId, Time: ts})
				}
			}
			r.mu.Unlock()
			logger.Debugf("relay client %s re-announced in room %s as %s", c.Id, roomId, userId)
			return
		}
		stale := r.evictUser(userId)
		if len(r.members) >= h.opts.RoomCapacity {
			r.mu.Unlock()
			c.send(Frame{Event: EventRoomFull, RoomId: roomId, Time: ts})
			logger.Debugf("relay room %s is full, rejected %s", roomId, c.Id)
			return
		}

		for _, m := range r.members {
			m.client.send(Frame{Event: EventUserConnected, RoomId: roomId, UserId: userId, Time: ts})
			c.send(Frame{Event: EventUserConnected, RoomId: roomId, UserId: m.userId, Time: ts})
		}
		r.members = append(r.members, member{client: c, userId: userId})
		c.addRoom(roomId)
		r.mu.Unlock()

		if stale != nil {
			logger.Debugf("relay client %s replaced by %s in room %s as %s", stale.Id, c.Id, roomId, userId)
			stale.close()
		}
		h.joins.Inc()
		logger.Debugf("relay client %s joined room %s as %s", c.Id, roomId, userId)
		return
	}
}

func (h *Hub) getOrCreateRoom(roomId ID) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomId]
	if !ok {
		r = &room{id: roomId}
		h.rooms[roomId] = r
		h.roomCount.Inc()
	}
	return r
}

// Leave removes c from a room. Empty rooms are deleted.
func (h *Hub) Leave(c *Client, roomId ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, roomId)
}

// leaveLocked requires h.mu.
func (h *Hub) leaveLocked(c *Client, roomId ID) {
	r, ok := h.rooms[roomId]
	if !ok {
		return
	}

	r.mu.Lock()
	i := r.indexOf(c)
	if i < 0 {
		r.mu.Unlock()
		return
	}
	left := r.members[i]
	r.members = append(r.members[:i], r.members[i+1:]...)
	if h.opts.NotifyLeave {
		ts := h.now().UnixMilli()
		for _, m := range r.members {
			m.client.send(Frame{Event: EventUserDisconnected, RoomId: roomId, UserId: left.userId, Time: ts})
		}
	}
	empty := len(r.members) == 0
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	c.removeRoom(roomId)
	if empty {
		delete(h.rooms, roomId)
		h.roomCount.Dec()
	}
}

// disconnect drops c from every room it joined and forgets it.
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, roomId := range c.joinedRooms() {
		h.leaveLocked(c, roomId)
	}
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		n := h.connections.Dec()
		logger.Debugf("relay client disconnected: %s (total: %d)", c.Id, n)
	}
}

// RoomMembers returns the user ids in a room in join order.
func (h *Hub) RoomMembers(roomId ID) []ID {
	h.mu.Lock()
	r, ok := h.rooms[roomId]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]ID, len(r.members))
	for i, m := range r.members {
		ids[i] = m.userId
	}
	return ids
}

// Stop closes every connection. Clients connecting afterwards are refused.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.cancel()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	logger.Info("relay hub stopped")
}
