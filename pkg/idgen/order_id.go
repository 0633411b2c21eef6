package idgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// 订单编号
// ============================================================================
//
// 格式：档口编号 + YYMMDD + 4 位当日序号
//
//   01101 241028 0004
//   |     |      |
//   |     |      +-- 当日第 4 单，从 0001 开始
//   |     +-- 下单日期
//   +-- 档口编号
//
// 支付单号为 "P" + 订单编号。订单编号唯一且一单最多一笔支付，
// 所以支付单号也唯一。
//
// ============================================================================

const (
	DateLayout     = "060102"
	SequenceDigits = 4
	MaxSequence    = 9999
	PaymentPrefix  = "P"
)

var ErrSequenceExhausted = errors.New("当日订单序号已用尽")

// OrderPrefix 档口编号 + 日期
func OrderPrefix(merchantID string, t time.Time) string {
	return strings.TrimSpace(merchantID) + t.Format(DateLayout)
}

// OrderID 拼接订单编号
func OrderID(merchantID string, t time.Time, seq int) (string, error) {
	if seq < 1 || seq > MaxSequence {
		return "", ErrSequenceExhausted
	}
	return fmt.Sprintf("%s%0*d", OrderPrefix(merchantID, t), SequenceDigits, seq), nil
}

// ParseSequence 取出订单编号末尾的 4 位序号，前缀不匹配或格式不对时返回 false
func ParseSequence(orderID, prefix string) (int, bool) {
	orderID = strings.TrimSpace(orderID)
	if !strings.HasPrefix(orderID, prefix) || len(orderID) != len(prefix)+SequenceDigits {
		return 0, false
	}
	seq, err := strconv.Atoi(orderID[len(prefix):])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// NextSequence 在已有编号中取最大序号 + 1
func NextSequence(existing []string, prefix string) (int, error) {
	highest := 0
	for _, id := range existing {
		if seq, ok := ParseSequence(id, prefix); ok && seq > highest {
			highest = seq
		}
	}
	if highest >= MaxSequence {
		return 0, ErrSequenceExhausted
	}
	return highest + 1, nil
}

// PaymentID 由订单编号派生支付单号
func PaymentID(orderID string) string {
	return PaymentPrefix + strings.TrimSpace(orderID)
}
