package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub) *Client {
	c := newClient(h, nil)
	h.register(c)
	return c
}

func drain(t *testing.T, c *Client) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case data := <-c.out:
			f, err := decodeFrame(data)
			require.NoError(t, err)
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestJoin_AloneProducesNothing(t *testing.T) {
	h := NewHub(Options{})
	a := newTestClient(h)

	h.Join(a, "R", "1")
	assert.Empty(t, drain(t, a))
	assert.Equal(t, []ID{"1"}, h.RoomMembers("R"))
}

func TestJoin_TwoPartiesNotifiedOnce(t *testing.T) {
	h := NewHub(Options{})
	a := newTestClient(h)
	b := newTestClient(h)

	h.Join(a, "R", "1")
	h.Join(b, "R", "2")

	fa := drain(t, a)
	require.Len(t, fa, 1)
	assert.Equal(t, EventUserConnected, fa[0].Event)
	assert.Equal(t, ID("R"), fa[0].RoomId)
	assert.Equal(t, ID("2"), fa[0].UserId)

	fb := drain(t, b)
	require.Len(t, fb, 1)
	assert.Equal(t, EventUserConnected, fb[0].Event)
	assert.Equal(t, ID("1"), fb[0].UserId)

	assert.Equal(t, []ID{"1", "2"}, h.RoomMembers("R"))
}

func TestJoin_RepeatAnnouncesAgain(t *testing.T) {
	h := NewHub(Options{})
	a := newTestClient(h)
	b := newTestClient(h)

	h.Join(a, "R", "1")
	h.Join(b, "R", "2")
	drain(t, a)
	drain(t, b)

	h.Join(a, "R", "1")
	fb := drain(t, b)
	require.Len(t, fb, 1)
	assert.Equal(t, EventUserConnected, fb[0].Event)
	assert.Equal(t, ID("1"), fb[0].UserId)
	assert.Empty(t, drain(t, a))
	assert.Equal(t, []ID{"1", "2"}, h.RoomMembers("R"))
	assert.Equal(t, int64(2), h.Stats().Joins)
}

func TestJoin_ReconnectReplacesStaleConnection(t *testing.T) {
	h := NewHub(Options{RoomCapacity: 2})
	a, b := newTestClient(h), newTestClient(h)

	h.Join(a, "R", "1")
	h.Join(b, "R", "2")
	drain(t, a)
	drain(t, b)

	a2 := newTestClient(h)
	h.Join(a2, "R", "1")

	fa2 := drain(t, a2)
	require.Len(t, fa2, 1)
	assert.Equal(t, EventUserConnected, fa2[0].Event)
	assert.Equal(t, ID("2"), fa2[0].UserId)

	fb := drain(t, b)
	require.Len(t, fb, 1)
	assert.Equal(t, ID("1"), fb[0].UserId)

	assert.Equal(t, []ID{"2", "1"}, h.RoomMembers("R"))
	select {
	case <-a.done:
	default:
		t.Fatal("stale connection should have been closed")
	}
	assert.Empty(t, a.joinedRooms())

	// the stale connection going away later must not touch the new seat
	h.disconnect(a)
	assert.Equal(t, []ID{"2", "1"}, h.RoomMembers("R"))
}

func TestJoin_RoomFull(t *testing.T) {
	h := NewHub(Options{RoomCapacity: 2})
	a, b, c := newTestClient(h), newTestClient(h), newTestClient(h)

	h.Join(a, "R", "1")
	h.Join(b, "R", "2")
	drain(t, a)
	drain(t, b)

	h.Join(c, "R", "3")
	fc := drain(t, c)
	require.Len(t, fc, 1)
	assert.Equal(t, EventRoomFull, fc[0].Event)
	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, b))
	assert.Equal(t, []ID{"1", "2"}, h.RoomMembers("R"))
}

func TestJoin_LargerRoomKeepsJoinOrder(t *testing.T) {
	h := NewHub(Options{RoomCapacity: 3})
	a, b, c := newTestClient(h), newTestClient(h), newTestClient(h)

	h.Join(a, "R", "1")
	h.Join(b, "R", "2")
	h.Join(c, "R", "3")

	fa := drain(t, a)
	require.Len(t, fa, 2)
	assert.Equal(t, ID("2"), fa[0].UserId)
	assert.Equal(t, ID("3"), fa[1].UserId)

	fc := drain(t, c)
	require.Len(t, fc, 2)
	assert.Equal(t, ID("1"), fc[0].UserId)
	assert.Equal(t, ID("2"), fc[1].UserId)
}

func TestLeave_DeletesEmptyRoom(t *testing.T) {
	h := NewHub(Options{})
	a := newTestClient(h)
	b := newTestClient(h)

	h.Join(a, "R", "1")
	h.Join(b, "R", "2")
	drain(t, a)
	drain(t, b)

	h.Leave(a, "R")
	assert.Empty(t, drain(t, b), "leave notifications are off by default")
	assert.Equal(t, int64(1), h.Stats().Rooms)

	h.disconnect(b)
	assert.Nil(t, h.RoomMembers("R"))
	assert.Equal(t, int64(0), h.Stats().Rooms)
	assert.Equal(t, int64(1), h.Stats().Connections)
}

func TestLeave_NotifyWhenEnabled(t *testing.T) {
	h := NewHub(Options{NotifyLeave: true})
	a := newTestClient(h)
	b := newTestClient(h)

	h.Join(a, "R", "1")
	h.Join(b, "R", "2")
	drain(t, a)
	drain(t, b)

	h.disconnect(a)
	fb := drain(t, b)
	require.Len(t, fb, 1)
	assert.Equal(t, EventUserDisconnected, fb[0].Event)
	assert.Equal(t, ID("1"), fb[0].UserId)
}

type fakeAdmission map[string]bool

func (f fakeAdmission) CanJoinCall(_ context.Context, roomId string) (bool, error) {
	ok, found := f[roomId]
	if !found {
		return false, errors.New("not found")
	}
	return ok, nil
}

func TestJoin_Admission(t *testing.T) {
	h := NewHub(Options{Admission: fakeAdmission{"1": true, "2": false}})
	a := newTestClient(h)

	h.Join(a, "2", "u")
	fa := drain(t, a)
	require.Len(t, fa, 1)
	assert.Equal(t, EventJoinRejected, fa[0].Event)

	h.Join(a, "3", "u")
	fa = drain(t, a)
	require.Len(t, fa, 1)
	assert.Equal(t, EventJoinRejected, fa[0].Event)

	h.Join(a, "1", "u")
	assert.Empty(t, drain(t, a))
	assert.Equal(t, []ID{"u"}, h.RoomMembers("1"))
}

func TestSlowClientIsDisconnected(t *testing.T) {
	h := NewHub(Options{RoomCapacity: 10, SendBuffer: 1})
	slow := newTestClient(h)
	h.Join(slow, "R", "slow")

	for i := 0; i < 3; i++ {
		h.Join(newTestClient(h), "R", ID(strings.Repeat("x", i+1)))
	}

	select {
	case <-slow.done:
	default:
		t.Fatal("slow client should have been closed")
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	h := NewHub(Options{RoomCapacity: 2})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Join(newTestClient(h), "R", ID(rune('a'+i)))
		}(i)
	}
	wg.Wait()
	assert.Len(t, h.RoomMembers("R"), 2)
}

func TestID_AcceptsNumbers(t *testing.T) {
	f, err := decodeFrame([]byte(`{"event":"join-room","roomId":7,"userId":"42"}`))
	require.NoError(t, err)
	assert.Equal(t, ID("7"), f.RoomId)
	assert.Equal(t, ID("42"), f.UserId)

	_, err = decodeFrame([]byte(`{"event":"join-room","roomId":{}}`))
	assert.Error(t, err)
}

// websocket round trip

func newTestServer(t *testing.T, h *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func waitMembers(t *testing.T, h *Hub, room ID, n int) {
	t.Helper()
	assert.Eventually(t, func() bool { return len(h.RoomMembers(room)) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_TwoPartyCall(t *testing.T) {
	h := NewHub(Options{})
	t.Cleanup(h.Stop)
	url := newTestServer(t, h)

	a := dial(t, url)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"event":"join-room","roomId":"R","userId":"1"}`)))
	waitMembers(t, h, "R", 1)

	b := dial(t, url)
	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte(`{"event":"join-room","roomId":"R","userId":"2"}`)))

	fa := readFrame(t, a)
	assert.Equal(t, EventUserConnected, fa.Event)
	assert.Equal(t, ID("2"), fa.UserId)

	fb := readFrame(t, b)
	assert.Equal(t, EventUserConnected, fb.Event)
	assert.Equal(t, ID("1"), fb.UserId)

	expectSilence(t, a)
	assert.Equal(t, int64(2), h.Stats().Connections)
}

func TestWebSocket_DisconnectCleansUp(t *testing.T) {
	h := NewHub(Options{})
	t.Cleanup(h.Stop)
	url := newTestServer(t, h)

	a := dial(t, url)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"event":"join-room","roomId":"R","userId":"1"}`)))
	waitMembers(t, h, "R", 1)

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool {
		s := h.Stats()
		return s.Rooms == 0 && s.Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}
