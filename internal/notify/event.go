package notify

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"canteen/internal/model"
)

const (
	TopicOrders = "orders"
	TopicPoints = "points"
)

const (
	EventNewOrder     = "new-order"
	EventNewPoints    = "new-points"
	EventOrderUpdated = "order-updated"
)

// 手动通知（database-changed / POST /api/emit）里的变更类型
const (
	ChangeNewOrder     = "new_order"
	ChangeNewPoints    = "new_points"
	ChangeOrderUpdated = "order_updated"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrUnknownChangeType = errors.New("未知的变更类型")
	ErrInvalidPayload    = errors.New("payload 不是合法的 JSON")
)

// Event 推送给客户端的消息
type Event struct {
	Name      string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

func NewEvent(name string, data interface{}) Event {
	return Event{Name: name, Data: data, Timestamp: FormatTime(time.Now())}
}

// FormatTime ISO-8601，毫秒精度，UTC
func FormatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Publisher 按频道推送事件，返回送达的连接数
type Publisher interface {
	Publish(topic string, ev Event) int
}

// route 变更类型 -> (事件名, 频道)
func route(changeType string) (event, topic string, err error) {
	switch strings.TrimSpace(changeType) {
	case ChangeNewOrder:
		return EventNewOrder, TopicOrders, nil
	case ChangeNewPoints:
		return EventNewPoints, TopicPoints, nil
	case ChangeOrderUpdated:
		return EventOrderUpdated, TopicOrders, nil
	}
	return "", "", ErrUnknownChangeType
}

// Announce 把手动通知转成对应频道的事件
func Announce(p Publisher, changeType string, payload json.RawMessage) (int, error) {
	event, topic, err := route(changeType)
	if err != nil {
		return 0, err
	}
	var data interface{} = payload
	if len(payload) == 0 {
		data = struct{}{}
	} else if !json.Valid(payload) {
		return 0, ErrInvalidPayload
	}
	return p.Publish(topic, NewEvent(event, data)), nil
}

// OrderPayload new-order / order-updated 的数据
type OrderPayload struct {
	OrderID      string `json:"orderId"`
	StudentID    string `json:"studentId"`
	StudentName  string `json:"studentName"`
	MerchantID   string `json:"merchantId"`
	MerchantName string `json:"merchantName"`
	OrderTime    string `json:"orderTime"`
	TotalAmount  string `json:"totalAmount"`
	Status       string `json:"status"`
}

func NewOrderPayload(o *model.Order, studentName, merchantName string) OrderPayload {
	return OrderPayload{
		OrderID:      strings.TrimSpace(o.OrderID),
		StudentID:    strings.TrimSpace(o.StudentID),
		StudentName:  studentName,
		MerchantID:   strings.TrimSpace(o.MerchantID),
		MerchantName: merchantName,
		OrderTime:    FormatTime(o.OrderTime),
		TotalAmount:  o.TotalAmount.String(),
		Status:       model.NormalizeStatus(o.Status),
	}
}

// PointsPayload new-points 的数据
type PointsPayload struct {
	RecordID    string `json:"recordId"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	OrderID     string `json:"orderId"`
	Points      int64  `json:"points"`
	CreatedAt   string `json:"createdAt"`
}

func NewPointsPayload(r *model.PointRecord, studentName string) PointsPayload {
	return PointsPayload{
		RecordID:    strconv.FormatInt(r.RecordID, 10),
		StudentID:   strings.TrimSpace(r.StudentID),
		StudentName: studentName,
		OrderID:     strings.TrimSpace(r.OrderID),
		Points:      r.Points,
		CreatedAt:   FormatTime(r.CreatedAt),
	}
}
