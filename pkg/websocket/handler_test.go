package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"friend-chat/config"
	"friend-chat/internal/presence"
	"friend-chat/pkg/jwt"
	"friend-chat/pkg/metrics"

	"github.com/gorilla/websocket"
)

type testEnv struct {
	gw       *Gateway
	registry *presence.MemoryRegistry
	jwt      *jwt.JWTService
	url      string
}

func newTestEnv(t *testing.T, cfg config.WebSocketConfig) *testEnv {
	t.Helper()
	if cfg.PingInterval == 0 {
		cfg.PingInterval = time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "ws-test-secret", ExpireTime: time.Hour, Issuer: "test"})
	registry := presence.NewMemoryRegistry()
	gw := NewGateway(cfg, registry, jwtSvc, metrics.New(), nil)

	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		gw.Shutdown()
		srv.Close()
	})
	return &testEnv{
		gw:       gw,
		registry: registry,
		jwt:      jwtSvc,
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

// dial 以 userId 声明身份连接；withToken 时附带匹配的令牌
func (e *testEnv) dial(t *testing.T, userID uint, withToken bool) *websocket.Conn {
	t.Helper()
	url := e.url + "/ws"
	if userID != 0 {
		url += fmt.Sprintf("?userId=%d", userID)
		if withToken {
			token, err := e.jwt.GenerateToken(userID)
			if err != nil {
				t.Fatal(err)
			}
			url += "&token=" + token
		}
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitEvent 读取直到收到指定事件，跳过其他事件
func waitEvent(t *testing.T, conn *websocket.Conn, event string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("bad frame %s: %v", payload, err)
		}
		if env.Event == event && (match == nil || match(env.Data)) {
			return env.Data
		}
	}
}

func snapshotEquals(want string) func(json.RawMessage) bool {
	return func(data json.RawMessage) bool {
		var ids []uint
		json.Unmarshal(data, &ids)
		return fmt.Sprint(ids) == want
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	msg, err := Encode(event, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatal(err)
	}
}

func TestOnlineSnapshotsOnConnectAndDisconnect(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{})

	a := env.dial(t, 1, true)
	waitEvent(t, a, EventGetOnlineUsers, snapshotEquals("[1]"))

	b := env.dial(t, 2, true)
	waitEvent(t, a, EventGetOnlineUsers, snapshotEquals("[1 2]"))
	waitEvent(t, b, EventGetOnlineUsers, snapshotEquals("[1 2]"))

	b.Close()
	waitEvent(t, a, EventGetOnlineUsers, snapshotEquals("[1]"))

	if _, ok, _ := env.registry.Session(context.Background(), 2); ok {
		t.Fatal("user 2 still registered after disconnect")
	}
}

func TestUncorroboratedIdentityIsAnonymous(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{})

	anon := env.dial(t, 5, false)
	waitEvent(t, anon, EventGetOnlineUsers, snapshotEquals("[]"))

	ids, _ := env.registry.OnlineUserIDs(context.Background())
	if len(ids) != 0 {
		t.Fatalf("anonymous connection registered presence: %v", ids)
	}
	if env.gw.Hub().Count() != 1 {
		t.Fatalf("anonymous connection was not accepted")
	}
}

func TestTrustedClaimedIdentity(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{TrustClaimedIdentity: true})

	c := env.dial(t, 9, false)
	waitEvent(t, c, EventGetOnlineUsers, snapshotEquals("[9]"))
}

func TestPushToUserDeliversOnce(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{})
	ctx := context.Background()

	b := env.dial(t, 2, true)
	waitEvent(t, b, EventGetOnlineUsers, snapshotEquals("[2]"))

	if !env.gw.PushToUser(ctx, 2, EventNewMessage, map[string]interface{}{"id": 10, "text": "hi"}) {
		t.Fatal("push to online user reported failure")
	}
	data := waitEvent(t, b, EventNewMessage, nil)
	var msg struct {
		ID   int    `json:"id"`
		Text string `json:"text"`
	}
	json.Unmarshal(data, &msg)
	if msg.ID != 10 || msg.Text != "hi" {
		t.Fatalf("message = %+v", msg)
	}

	// 不应有第二条 newMessage
	b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	for {
		_, payload, err := b.ReadMessage()
		if err != nil {
			break
		}
		if strings.Contains(string(payload), EventNewMessage) {
			t.Fatalf("duplicate delivery: %s", payload)
		}
	}

	if env.gw.PushToUser(ctx, 3, EventNewMessage, "x") {
		t.Fatal("push to offline user reported success")
	}
}

func TestTypingRelayUsesConnectionIdentity(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{})

	a := env.dial(t, 1, true)
	waitEvent(t, a, EventGetOnlineUsers, snapshotEquals("[1]"))
	b := env.dial(t, 2, true)
	waitEvent(t, b, EventGetOnlineUsers, snapshotEquals("[1 2]"))

	send(t, a, EventTyping, TypingPayload{ReceiverID: 2, SenderID: 99, IsTyping: true})

	data := waitEvent(t, b, EventUserTyping, nil)
	var got UserTyping
	json.Unmarshal(data, &got)
	if got.SenderID != 1 || !got.IsTyping {
		t.Fatalf("userTyping = %+v", got)
	}
}

func TestLegacySendMessageRelay(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{})

	a := env.dial(t, 1, true)
	waitEvent(t, a, EventGetOnlineUsers, snapshotEquals("[1]"))
	b := env.dial(t, 2, true)
	waitEvent(t, b, EventGetOnlineUsers, snapshotEquals("[1 2]"))

	send(t, a, EventSendMessage, map[string]interface{}{"senderId": 1, "receiverId": 2, "text": "legacy"})

	data := waitEvent(t, b, EventNewMessage, nil)
	if !strings.Contains(string(data), `"legacy"`) {
		t.Fatalf("relayed payload = %s", data)
	}
}

func TestReconnectLastConnectionWins(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{})
	ctx := context.Background()

	first := env.dial(t, 1, true)
	waitEvent(t, first, EventGetOnlineUsers, snapshotEquals("[1]"))
	second := env.dial(t, 1, true)
	waitEvent(t, second, EventGetOnlineUsers, snapshotEquals("[1]"))

	first.Close()

	// 旧连接关闭后用户仍在线，推送到新连接
	deadline := time.Now().Add(2 * time.Second)
	for env.gw.Hub().Count() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok, _ := env.registry.Session(ctx, 1); !ok {
		t.Fatal("user went offline when the replaced connection closed")
	}
	env.gw.PushToUser(ctx, 1, EventMessageDeleted, 5)
	waitEvent(t, second, EventMessageDeleted, nil)
}

func TestInboundEventsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{EventRate: 0.001, EventBurst: 1})

	a := env.dial(t, 1, true)
	waitEvent(t, a, EventGetOnlineUsers, snapshotEquals("[1]"))
	b := env.dial(t, 2, true)
	waitEvent(t, b, EventGetOnlineUsers, snapshotEquals("[1 2]"))

	send(t, a, EventTyping, TypingPayload{ReceiverID: 2, IsTyping: true})
	send(t, a, EventTyping, TypingPayload{ReceiverID: 2, IsTyping: false})

	data := waitEvent(t, b, EventUserTyping, nil)
	var got UserTyping
	json.Unmarshal(data, &got)
	if !got.IsTyping {
		t.Fatal("first typing event should pass")
	}

	b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	for {
		_, payload, err := b.ReadMessage()
		if err != nil {
			break
		}
		if strings.Contains(string(payload), EventUserTyping) {
			t.Fatalf("throttled event delivered: %s", payload)
		}
	}
}

func TestPushClearsSessionNotHeldByThisGateway(t *testing.T) {
	env := newTestEnv(t, config.WebSocketConfig{})
	ctx := context.Background()

	// 上一次进程遗留的会话，本进程的连接表中不存在
	if err := env.registry.SetOnline(ctx, 4, "leftover-session"); err != nil {
		t.Fatal(err)
	}

	if env.gw.PushToUser(ctx, 4, EventNewMessage, "x") {
		t.Fatal("push to a session this gateway does not hold reported success")
	}
	if _, ok, _ := env.registry.Session(ctx, 4); ok {
		t.Fatal("leftover session still registered after push")
	}
	if ids, _ := env.registry.OnlineUserIDs(ctx); len(ids) != 0 {
		t.Fatalf("online = %v, want none", ids)
	}
}
