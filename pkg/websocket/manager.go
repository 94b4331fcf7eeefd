package websocket

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// ConnState 连接状态：CONNECTING → OPEN → CLOSED
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	default:
		return "CLOSED"
	}
}

// Client 一个WebSocket连接
// SessionID: 会话ID，每个连接唯一
// UserID: 握手时确认的用户ID，匿名连接为0
// Send: 待发送消息队列
type Client struct {
	SessionID string
	UserID    uint
	Conn      *websocket.Conn
	Send      chan []byte

	state atomic.Int32
}

// NewClient 创建处于 CONNECTING 状态的连接
func NewClient(sessionID string, userID uint, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	c := &Client{
		SessionID: sessionID,
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan []byte, buffer),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// State 当前连接状态
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Anonymous 是否为未确认身份的连接
func (c *Client) Anonymous() bool {
	return c.UserID == 0
}

// Hub 管理本进程内所有WebSocket连接，按会话ID索引
type Hub struct {
	clients map[string]*Client
	lock    sync.RWMutex
}

// NewHub 创建连接管理器
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Add 注册连接并置为 OPEN
func (h *Hub) Add(c *Client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.clients[c.SessionID] = c
	c.state.Store(int32(StateOpen))
}

// Remove 移除连接并关闭其发送队列，重复调用无副作用
func (h *Hub) Remove(sessionID string) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	c, ok := h.clients[sessionID]
	if !ok {
		return false
	}
	c.state.Store(int32(StateClosed))
	close(c.Send)
	delete(h.clients, sessionID)
	return true
}

// Has 会话是否由本进程持有
func (h *Hub) Has(sessionID string) bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	_, ok := h.clients[sessionID]
	return ok
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// SendTo 向指定会话投递消息，队列满或会话不存在时丢弃
func (h *Hub) SendTo(sessionID string, msg []byte) bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	c, ok := h.clients[sessionID]
	if !ok {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// Broadcast 向所有连接投递消息，返回成功入队的数量
func (h *Hub) Broadcast(msg []byte) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	n := 0
	for _, c := range h.clients {
		select {
		case c.Send <- msg:
			n++
		default:
		}
	}
	return n
}

// CloseAll 关闭所有底层连接，读协程随之退出并完成清理
func (h *Hub) CloseAll() {
	h.lock.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.Conn)
	}
	h.lock.RUnlock()

	for _, conn := range conns {
		if conn != nil {
			conn.Close()
		}
	}
}
