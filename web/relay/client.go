package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/util/common"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one relay connection. Frames for it are queued on out and
// written by a single goroutine, so they arrive in enqueue order.
type Client struct {
	Id string

	hub  *Hub
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	rooms map[ID]struct{}
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Id:    uuid.NewString(),
		hub:   h,
		conn:  conn,
		out:   make(chan []byte, h.opts.SendBuffer),
		done:  make(chan struct{}),
		rooms: make(map[ID]struct{}),
	}
}

// send queues f without blocking. A client that cannot keep up is closed.
func (c *Client) send(f Frame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- encodeFrame(f):
	default:
		logger.Debugf("relay client %s send buffer full, disconnecting", c.Id)
		c.close()
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) addRoom(id ID) {
	c.mu.Lock()
	c.rooms[id] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) removeRoom(id ID) {
	c.mu.Lock()
	delete(c.rooms, id)
	c.mu.Unlock()
}

func (c *Client) joinedRooms() []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]ID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Serve runs the connection until it closes. It owns conn.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := newClient(h, conn)
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	defer h.disconnect(c)
	defer c.close()

	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer common.Recover("relay read pump")

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("relay client %s read error: %v", c.Id, err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	f, err := decodeFrame(data)
	if err != nil {
		logger.Debugf("relay client %s sent malformed frame: %v", c.Id, err)
		return
	}
	switch f.Event {
	case EventJoinRoom:
		c.hub.Join(c, f.RoomId, f.UserId)
	case EventLeaveRoom:
		c.hub.Leave(c, f.RoomId)
	default:
		logger.Debugf("relay client %s sent unknown event %q", c.Id, f.Event)
	}
}

func (c *Client) writePump() {
	defer common.Recover("relay write pump")
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debugf("relay client %s write error: %v", c.Id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
