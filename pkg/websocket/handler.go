package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"friend-chat/config"
	"friend-chat/internal/presence"
	"friend-chat/pkg/jwt"
	"friend-chat/pkg/metrics"
	"friend-chat/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	registryWait   = 5 * time.Second
	maxInboundSize = 64 << 10
)

// Gateway 实时通道：管理连接生命周期、在线状态广播与事件转发
type Gateway struct {
	hub      *Hub
	registry presence.Registry
	jwt      *jwt.JWTService
	cfg      config.WebSocketConfig
	limiter  *ratelimit.KeyLimiter
	metrics  *metrics.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader

	// 保证快照按计算顺序入队，所有连接最终收敛到同一份列表
	broadcastMu sync.Mutex
}

// NewGateway 创建实时通道
func NewGateway(cfg config.WebSocketConfig, registry presence.Registry, jwtSvc *jwt.JWTService, m *metrics.Metrics, log *zap.Logger) *Gateway {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		hub:      NewHub(),
		registry: registry,
		jwt:      jwtSvc,
		cfg:      cfg,
		limiter:  ratelimit.New(cfg.EventRate, cfg.EventBurst, 0),
		metrics:  m,
		log:      log,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// Hub 返回连接管理器
func (g *Gateway) Hub() *Hub {
	return g.hub
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// resolveIdentity 解析握手中声明的 userId
// 未开启 trustClaimedIdentity 时，声明必须与有效 token 的主体一致，否则按匿名连接处理
func (g *Gateway) resolveIdentity(r *http.Request) uint {
	raw := r.URL.Query().Get("userId")
	claimed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || claimed == 0 {
		return 0
	}
	if g.cfg.TrustClaimedIdentity {
		return uint(claimed)
	}
	if g.jwt == nil {
		return 0
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = jwt.TokenFromRequest(r)
	}
	subject, err := g.jwt.ValidateToken(token)
	if err != nil || subject != uint(claimed) {
		g.log.Debug("握手身份未通过校验，按匿名连接处理",
			zap.String("claimed", raw),
			zap.Error(err),
		)
		return 0
	}
	return subject
}

// Handle Gin路由处理函数 GET /ws
func (g *Gateway) Handle(c *gin.Context) {
	g.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP 升级为WebSocket连接并运行直到连接关闭
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := g.resolveIdentity(r)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("websocket升级失败", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxInboundSize)

	client := NewClient(uuid.NewString(), userID, conn, g.cfg.SendBuffer)
	g.open(client)
	defer g.close(client)

	go g.writePump(client)
	g.readPump(client)
}

// open 连接进入 OPEN：登记在线状态并广播快照
func (g *Gateway) open(client *Client) {
	g.hub.Add(client)
	g.metrics.Connections.Inc()

	if client.Anonymous() {
		g.log.Debug("匿名连接建立", zap.String("session_id", client.SessionID))
		g.sendSnapshot(client)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryWait)
	defer cancel()
	if err := g.registry.SetOnline(ctx, client.UserID, client.SessionID); err != nil {
		g.log.Warn("登记在线状态失败",
			zap.Uint("user_id", client.UserID),
			zap.String("session_id", client.SessionID),
			zap.Error(err),
		)
	}
	g.log.Info("用户连接",
		zap.Uint("user_id", client.UserID),
		zap.String("session_id", client.SessionID),
	)
	g.BroadcastOnlineUsers()
}

// close 连接进入 CLOSED：只清理该会话的在线状态
func (g *Gateway) close(client *Client) {
	if !g.hub.Remove(client.SessionID) {
		return
	}
	client.Conn.Close()
	g.limiter.Forget(client.SessionID)
	g.metrics.Connections.Dec()

	if client.Anonymous() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryWait)
	defer cancel()
	if _, _, err := g.registry.ClearSession(ctx, client.SessionID); err != nil {
		g.log.Warn("清理在线状态失败",
			zap.Uint("user_id", client.UserID),
			zap.String("session_id", client.SessionID),
			zap.Error(err),
		)
	}
	g.log.Info("用户断开",
		zap.Uint("user_id", client.UserID),
		zap.String("session_id", client.SessionID),
	)
	g.BroadcastOnlineUsers()
}

// onlineSnapshot 当前在线用户快照
func (g *Gateway) onlineSnapshot() ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), registryWait)
	defer cancel()
	ids, err := g.registry.OnlineUserIDs(ctx)
	if err != nil {
		return nil, 0, err
	}
	msg, err := Encode(EventGetOnlineUsers, ids)
	return msg, len(ids), err
}

// BroadcastOnlineUsers 向所有连接广播完整在线用户列表
func (g *Gateway) BroadcastOnlineUsers() {
	g.broadcastMu.Lock()
	defer g.broadcastMu.Unlock()

	msg, online, err := g.onlineSnapshot()
	if err != nil {
		g.log.Warn("获取在线用户失败", zap.Error(err))
		return
	}
	g.metrics.OnlineUsers.Set(float64(online))
	delivered := g.hub.Broadcast(msg)
	g.metrics.PushesDelivered.WithLabelValues(EventGetOnlineUsers).Add(float64(delivered))
	if dropped := g.hub.Count() - delivered; dropped > 0 {
		g.metrics.PushesDropped.WithLabelValues(EventGetOnlineUsers).Add(float64(dropped))
	}
}

// sendSnapshot 仅向单个连接发送当前快照
func (g *Gateway) sendSnapshot(client *Client) {
	g.broadcastMu.Lock()
	defer g.broadcastMu.Unlock()

	msg, _, err := g.onlineSnapshot()
	if err != nil {
		g.log.Warn("获取在线用户失败", zap.Error(err))
		return
	}
	g.hub.SendTo(client.SessionID, msg)
}

// PushToUser 向在线用户推送事件，不在线或队列已满时静默丢弃
func (g *Gateway) PushToUser(ctx context.Context, userID uint, event string, data interface{}) bool {
	sessionID, ok, err := g.registry.Session(ctx, userID)
	if err != nil {
		g.log.Warn("查询用户会话失败", zap.Uint("user_id", userID), zap.Error(err))
		return false
	}
	if !ok {
		g.metrics.PushesDropped.WithLabelValues(event).Inc()
		return false
	}

	msg, err := Encode(event, data)
	if err != nil {
		g.log.Error("事件编码失败", zap.String("event", event), zap.Error(err))
		return false
	}

	if g.hub.SendTo(sessionID, msg) {
		g.metrics.PushesDelivered.WithLabelValues(event).Inc()
		return true
	}
	g.metrics.PushesDropped.WithLabelValues(event).Inc()

	// 注册表指向的会话已不在本进程，清除残留映射
	if !g.hub.Has(sessionID) {
		if _, cleared, err := g.registry.ClearSession(ctx, sessionID); err == nil && cleared {
			g.log.Info("清除残留会话", zap.Uint("user_id", userID), zap.String("session_id", sessionID))
			go g.BroadcastOnlineUsers()
		}
	}
	return false
}

// writePump 写协程：发送队列中的消息并定时发送ping心跳
func (g *Gateway) writePump(client *Client) {
	ticker := time.NewTicker(g.pingInterval())
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump 读协程：处理客户端事件，超时未收到任何数据则断开
func (g *Gateway) readPump(client *Client) {
	readTimeout := g.readTimeout()
	_ = client.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, payload, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug("连接异常关闭", zap.String("session_id", client.SessionID), zap.Error(err))
			}
			return
		}
		_ = client.Conn.SetReadDeadline(time.Now().Add(readTimeout))

		if !g.limiter.Allow(client.SessionID, time.Now()) {
			g.metrics.EventsThrottled.Inc()
			g.log.Debug("客户端事件超过速率限制", zap.String("session_id", client.SessionID))
			continue
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			g.log.Debug("无法解析的客户端事件", zap.String("session_id", client.SessionID), zap.Error(err))
			continue
		}
		g.dispatch(client, env)
	}
}

// dispatch 处理客户端事件，均不修改持久化状态
func (g *Gateway) dispatch(client *Client, env Envelope) {
	if client.Anonymous() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), registryWait)
	defer cancel()

	switch env.Event {
	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ReceiverID == 0 {
			return
		}
		g.PushToUser(ctx, p.ReceiverID, EventUserTyping, UserTyping{
			SenderID: client.UserID,
			IsTyping: p.IsTyping,
		})

	case EventSendMessage:
		// 旧版客户端转发路径，原样转发，不落库
		var target relayTarget
		if err := json.Unmarshal(env.Data, &target); err != nil || target.ReceiverID == 0 {
			return
		}
		if target.SenderID != 0 && target.SenderID != client.UserID {
			g.log.Debug("拒绝转发他人消息",
				zap.Uint("user_id", client.UserID),
				zap.Uint("claimed_sender", target.SenderID),
			)
			return
		}
		g.PushToUser(ctx, target.ReceiverID, EventNewMessage, env.Data)

	default:
		g.log.Debug("未知客户端事件", zap.String("event", env.Event))
	}
}

// Shutdown 关闭所有连接
func (g *Gateway) Shutdown() {
	g.hub.CloseAll()
}

func (g *Gateway) pingInterval() time.Duration {
	if g.cfg.PingInterval > 0 {
		return g.cfg.PingInterval
	}
	return 30 * time.Second
}

func (g *Gateway) readTimeout() time.Duration {
	if g.cfg.ReadTimeout > 0 {
		return g.cfg.ReadTimeout
	}
	return 90 * time.Second
}
