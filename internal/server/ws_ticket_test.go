package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"blogapi/internal/cache"
	"blogapi/internal/models"
	"blogapi/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIssueWSTicket_RequiresRedis(t *testing.T) {
	ts := newTestServer(t, nil, "")
	testutil.CreateUser(t, ts.db, "ada")

	resp := ts.request(t, http.MethodPost, "/api/ws/ticket", ts.login(t, "ada"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, ts.request(t, http.MethodPost, "/api/ws/ticket", "", nil).StatusCode)
}

func TestWSAuth_Tickets(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	ts := newTestServer(t, rdb, "")
	u := testutil.CreateUser(t, ts.db, "ada")

	resp := ts.request(t, http.MethodPost, "/api/ws/ticket", ts.login(t, "ada"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	ticket, _ := body["ticket"].(string)
	require.NotEmpty(t, ticket)
	assert.Equal(t, float64(60), body["expires_in"])

	stored, err := mr.Get(cache.WSTicketKey(ticket))
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(u.ID), 10), stored)

	// A plain GET passes auth and is then refused by the upgrade handler.
	resp = ts.request(t, http.MethodGet, "/api/ws?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.False(t, mr.Exists(cache.WSTicketKey(ticket)), "tickets are single-use")

	resp = ts.request(t, http.MethodGet, "/api/ws?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthenticated, decode[models.ErrorResponse](t, resp).Code)

	assert.Equal(t, http.StatusUnauthorized, ts.request(t, http.MethodGet, "/api/ws?ticket=bogus", "", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, ts.request(t, http.MethodGet, "/api/ws", "", nil).StatusCode)
}

// listen serves the app on a loopback port and returns its ws:// base URL.
func listen(t *testing.T, ts *testServer) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()
	t.Cleanup(func() {
		_ = ts.srv.hub.Shutdown(context.Background())
		_ = ts.app.ShutdownWithTimeout(time.Second)
	})
	return "ws://" + ln.Addr().String()
}

func TestWebsocket_DeliversNotifications(t *testing.T) {
	_, rdb := newMiniRedis(t)
	ts := newTestServer(t, rdb, "live_notifications=on")
	author := testutil.CreateUser(t, ts.db, "author")
	testutil.CreateUser(t, ts.db, "fan")
	post := testutil.CreatePost(t, ts.db, author, "Watched")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, ts.srv.hub.StartWiring(ctx))
	base := listen(t, ts)

	resp := ts.request(t, http.MethodPost, "/api/ws/ticket", ts.login(t, "author"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ticket := decode[map[string]any](t, resp)["ticket"].(string)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/api/ws?ticket="+ticket, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return ts.srv.hub.Connected(author.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, ts.request(t, http.MethodPost, "/api/posts/"+post.Slug+"/like", ts.login(t, "fan"), nil).StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev struct {
		Type    string `json:"type"`
		Payload struct {
			Type   string `json:"type"`
			Link   string `json:"link"`
			Sender struct {
				Username string `json:"username"`
			} `json:"sender"`
		} `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "notification", ev.Type)
	assert.Equal(t, models.NotificationLike, ev.Payload.Type)
	assert.Equal(t, "/posts/"+post.Slug, ev.Payload.Link)
	assert.Equal(t, "fan", ev.Payload.Sender.Username)
}

func TestWebsocket_LiveNotificationsFlagOff(t *testing.T) {
	ts := newTestServer(t, nil, "live_notifications=off")
	author := testutil.CreateUser(t, ts.db, "author")
	testutil.CreateUser(t, ts.db, "fan")
	post := testutil.CreatePost(t, ts.db, author, "Quiet")
	base := listen(t, ts)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+ts.login(t, "author"))
	conn, _, err := websocket.DefaultDialer.Dial(base+"/api/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return ts.srv.hub.Connected(author.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, ts.request(t, http.MethodPost, "/api/posts/"+post.Slug+"/like", ts.login(t, "fan"), nil).StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "nothing is pushed while the flag is off")

	var stored int64
	require.NoError(t, ts.db.Model(&models.Notification{}).Where("recipient_id = ?", author.ID).Count(&stored).Error)
	assert.Equal(t, int64(1), stored, "the notification is still stored")
}
