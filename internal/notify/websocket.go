package notify

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"canteen/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// 客户端发来的消息
const (
	clientJoinOrders      = "join-orders"
	clientJoinPoints      = "join-points"
	clientJoin            = "join"
	clientDatabaseChanged = "database-changed"
)

type clientMessage struct {
	Event string          `json:"event"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type changeAnnouncement struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client 一条 websocket 连接
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Closed() bool {
	return c.closed.Load()
}

func (c *Client) Send(msg []byte) bool {
	if c.Closed() {
		return false
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		logger.Warnw("[Notify] 客户端发送缓冲已满，丢弃消息", "conn_id", c.id)
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.hub.Unregister(c)
		_ = c.conn.Close()
		logger.Infow("[Notify] 客户端断开", "conn_id", c.id)
	})
}

// Server websocket 入口
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 看板和接口不同源部署
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP 升级连接并阻塞处理读循环，直到连接断开
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了 400
		logger.Warnw("[Notify] websocket 升级失败", "error", err)
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	s.hub.Register(c)
	logger.Infow("[Notify] 客户端连接", "conn_id", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnw("[Notify] 读取消息异常", "conn_id", c.id, "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(NewEvent("error", map[string]string{"message": "消息格式错误"}))
		return
	}

	switch msg.Event {
	case clientJoinOrders:
		c.join(TopicOrders)
	case clientJoinPoints:
		c.join(TopicPoints)
	case clientJoin:
		topic := strings.TrimSpace(msg.Topic)
		if topic != TopicOrders && topic != TopicPoints {
			c.reply(NewEvent("error", map[string]string{"message": "未知的频道: " + topic}))
			return
		}
		c.join(topic)
	case clientDatabaseChanged:
		var change changeAnnouncement
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			c.reply(NewEvent("error", map[string]string{"message": "变更通知格式错误"}))
			return
		}
		if _, err := Announce(c.hub, change.Type, change.Payload); err != nil {
			c.reply(NewEvent("error", map[string]string{"message": err.Error()}))
		}
	default:
		c.reply(NewEvent("error", map[string]string{"message": "未知的事件: " + msg.Event}))
	}
}

func (c *Client) join(topic string) {
	c.hub.Subscribe(c, topic)
	logger.Debugw("[Notify] 客户端订阅频道", "conn_id", c.id, "topic", topic)
	c.reply(NewEvent("joined", map[string]string{"topic": topic}))
}

func (c *Client) reply(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.Send(msg)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
