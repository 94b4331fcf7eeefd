package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

// -------------------- 统计 --------------------

type LatencyStats struct {
	Total     int
	Succeeded int
	Failed    int
	latencies []time.Duration
	mu        sync.Mutex
}

func (s *LatencyStats) Add(success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total++
	if !success {
		s.Failed++
		return
	}
	s.Succeeded++
	s.latencies = append(s.latencies, latency)
}

// Report 打印成功率与延迟分位
func (s *LatencyStats) Report(name string, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Printf("\n=== %s ===\n", name)
	fmt.Printf("总数: %d 成功: %d 失败: %d\n", s.Total, s.Succeeded, s.Failed)
	if len(s.latencies) == 0 {
		return
	}
	sorted := append([]time.Duration(nil), s.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	pct := func(p float64) time.Duration { return sorted[int(float64(len(sorted)-1)*p)] }
	fmt.Printf("延迟 平均: %v p50: %v p95: %v p99: %v 最大: %v\n",
		sum/time.Duration(len(sorted)), pct(0.50), pct(0.95), pct(0.99), sorted[len(sorted)-1])
	if took > 0 {
		fmt.Printf("吞吐: %.2f/s\n", float64(s.Succeeded)/took.Seconds())
	}
	if s.Total > 0 {
		fmt.Printf("成功率: %.2f%%\n", float64(s.Succeeded)/float64(s.Total)*100)
	}
}

// -------------------- HTTP 客户端 --------------------

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func (c *apiClient) do(method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: 解析响应失败: %w", method, path, err)
	}
	if env.Code != 0 {
		return fmt.Errorf("%s %s: %d %s (%s)", method, path, env.Code, env.Message, env.Reason)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// -------------------- 会话对 --------------------

type benchUser struct {
	api *apiClient
	id  uint
}

func signup(base string, name string) (*benchUser, error) {
	api := &apiClient{base: base, http: &http.Client{Timeout: 8 * time.Second}}
	var out struct {
		User struct {
			ID uint `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	body := map[string]string{
		"fullName": name,
		"email":    fmt.Sprintf("bench-%s@example.com", uuid.NewString()),
		"password": "bench-password",
	}
	if err := api.do(http.MethodPost, "/api/v1/auth/signup", body, &out); err != nil {
		return nil, err
	}
	api.token = out.Token
	return &benchUser{api: api, id: out.User.ID}, nil
}

// befriend a 发起请求，b 接受
func befriend(a, b *benchUser) error {
	if err := a.api.do(http.MethodPost, "/api/v1/friends/request", map[string]uint{"targetUserId": b.id}, nil); err != nil {
		return err
	}
	return b.api.do(http.MethodPost, "/api/v1/friends/request/accept", map[string]uint{"senderUserId": a.id}, nil)
}

func dialWS(base string, u *benchUser) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws?" + url.Values{
		"userId": {fmt.Sprint(u.id)},
		"token":  {u.api.token},
	}.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	return conn, err
}

// pushWaiter 按消息ID等待 newMessage 推送
type pushWaiter struct {
	mu      sync.Mutex
	waiting map[uint]chan struct{}
	early   map[uint]bool
}

func newPushWaiter() *pushWaiter {
	return &pushWaiter{waiting: map[uint]chan struct{}{}, early: map[uint]bool{}}
}

func (w *pushWaiter) expect(id uint) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan struct{})
	if w.early[id] {
		delete(w.early, id)
		close(ch)
		return ch
	}
	w.waiting[id] = ch
	return ch
}

func (w *pushWaiter) arrived(id uint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ch, ok := w.waiting[id]; ok {
		delete(w.waiting, id)
		close(ch)
		return
	}
	// 推送可能先于 HTTP 响应到达
	w.early[id] = true
}

func (w *pushWaiter) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if json.Unmarshal(raw, &env) != nil || env.Event != "newMessage" {
			continue
		}
		var msg struct {
			ID uint `json:"id"`
		}
		if json.Unmarshal(env.Data, &msg) == nil {
			w.arrived(msg.ID)
		}
	}
}

// -------------------- 压测 --------------------

type config struct {
	base     string
	pairs    int
	messages int
	timeout  time.Duration
	interval time.Duration
}

func runPair(cfg config, idx int, sendStats, pushStats *LatencyStats) error {
	sender, err := signup(cfg.base, fmt.Sprintf("bench-sender-%d", idx))
	if err != nil {
		return err
	}
	receiver, err := signup(cfg.base, fmt.Sprintf("bench-receiver-%d", idx))
	if err != nil {
		return err
	}
	if err := befriend(sender, receiver); err != nil {
		return err
	}

	conn, err := dialWS(cfg.base, receiver)
	if err != nil {
		return fmt.Errorf("连接WebSocket失败: %w", err)
	}
	defer conn.Close()

	waiter := newPushWaiter()
	go waiter.readLoop(conn)

	path := fmt.Sprintf("/api/v1/messages/send/%d", receiver.id)
	for j := 0; j < cfg.messages; j++ {
		start := time.Now()
		var msg struct {
			ID uint `json:"id"`
		}
		err := sender.api.do(http.MethodPost, path, map[string]string{"text": fmt.Sprintf("bench %d-%d", idx, j)}, &msg)
		sendStats.Add(err == nil, time.Since(start))
		if err != nil {
			pushStats.Add(false, 0)
			continue
		}

		select {
		case <-waiter.expect(msg.ID):
			pushStats.Add(true, time.Since(start))
		case <-time.After(cfg.timeout):
			pushStats.Add(false, 0)
		}
		time.Sleep(cfg.interval)
	}
	return nil
}

func main() {
	var cfg config
	pflag.StringVar(&cfg.base, "url", "http://localhost:8080", "服务地址")
	pflag.IntVarP(&cfg.pairs, "pairs", "p", 5, "并发好友对数量")
	pflag.IntVarP(&cfg.messages, "messages", "n", 20, "每对发送的消息数")
	pflag.DurationVar(&cfg.timeout, "push-timeout", 3*time.Second, "等待推送的超时时间")
	pflag.DurationVar(&cfg.interval, "interval", 5*time.Millisecond, "两条消息之间的间隔")
	pflag.Parse()

	fmt.Println("=== 好友聊天 消息投递压测 ===")
	fmt.Printf("开始时间: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Printf("目标: %s 好友对: %d 每对消息: %d\n", cfg.base, cfg.pairs, cfg.messages)

	sendStats := &LatencyStats{}
	pushStats := &LatencyStats{}
	var wg sync.WaitGroup
	var setupFailed int
	var mu sync.Mutex

	start := time.Now()
	for i := 0; i < cfg.pairs; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := runPair(cfg, idx, sendStats, pushStats); err != nil {
				fmt.Fprintf(os.Stderr, "好友对 %d 准备失败: %v\n", idx, err)
				mu.Lock()
				setupFailed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	took := time.Since(start)

	fmt.Printf("\n耗时: %v 准备失败的好友对: %d\n", took, setupFailed)
	sendStats.Report("HTTP 发送", took)
	pushStats.Report("WebSocket 推送（发送开始到收到 newMessage）", took)

	fmt.Println("\n=== 测试完成 ===")
	if setupFailed == cfg.pairs {
		os.Exit(1)
	}
}
