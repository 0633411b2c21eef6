package notify

import (
	"encoding/json"
	"sync"

	"canteen/internal/logger"
)

// Conn 一个客户端连接
type Conn interface {
	ID() string
	// Send 非阻塞投递，连接已关闭或缓冲区满时返回 false
	Send(msg []byte) bool
	Closed() bool
}

// Hub 维护连接和频道订阅关系
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	topics map[string]map[string]Conn
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]Conn),
		topics: make(map[string]map[string]Conn),
	}
}

var (
	defaultHub *Hub
	hubOnce    sync.Once
)

// Init 返回进程内唯一的 Hub，重复调用拿到的是同一个实例
func Init() *Hub {
	hubOnce.Do(func() {
		defaultHub = NewHub()
		logger.Infow("[Notify] 推送中心初始化完成")
	})
	return defaultHub
}

// Register 新连接，尚未订阅任何频道
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Subscribe 订阅频道，重复订阅无副作用；未注册的连接会先注册
func (h *Hub) Subscribe(c Conn, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]Conn)
		h.topics[topic] = subs
	}
	if _, exists := subs[c.ID()]; exists {
		return false
	}
	subs[c.ID()] = c
	return true
}

// Unregister 断开连接，从所有频道移除
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.ID())
	for topic, subs := range h.topics {
		delete(subs, c.ID())
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish 推送给频道内所有在线连接，已断开的连接直接跳过
func (h *Hub) Publish(topic string, ev Event) int {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Errorw("[Notify] 事件序列化失败", "topic", topic, "event", ev.Name, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]Conn, 0, len(h.topics[topic]))
	for _, c := range h.topics[topic] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Closed() {
			continue
		}
		if c.Send(msg) {
			delivered++
		}
	}
	logger.Debugw("[Notify] 事件已推送", "topic", topic, "event", ev.Name, "delivered", delivered)
	return delivered
}

// Subscribers 频道当前订阅数
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
