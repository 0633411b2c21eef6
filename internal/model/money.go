package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// Money 金额类型，统一保留 2 位小数
type Money struct {
	decimal.Decimal
}

// NewMoney 从 decimal 创建金额
func NewMoney(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(2)}
}

// MoneyFromFloat 从浮点数创建金额，拒绝 NaN/Inf
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, errors.New("金额不是有限数值")
	}
	return NewMoney(decimal.NewFromFloat(f)), nil
}

// MustMoney 解析字符串金额，仅用于常量和测试数据
func MustMoney(s string) Money {
	return NewMoney(decimal.RequireFromString(s))
}

func (m Money) Add(o Money) Money {
	return NewMoney(m.Decimal.Add(o.Decimal))
}

func (m Money) Sub(o Money) Money {
	return NewMoney(m.Decimal.Sub(o.Decimal))
}

// MulInt 单价 × 数量
func (m Money) MulInt(n int64) Money {
	return NewMoney(m.Decimal.Mul(decimal.NewFromInt(n)))
}

func (m Money) LessThan(o Money) bool {
	return m.Decimal.LessThan(o.Decimal)
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// Points 按 1 元 1 积分折算，不足 1 元的部分舍去
func (m Money) Points() int64 {
	return m.Decimal.Floor().IntPart()
}

// MarshalJSON 输出固定 2 位小数的字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 接受字符串或数字
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		m.Decimal = d.Round(2)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	parsed, err := MoneyFromFloat(f)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value 写库
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(2).Value()
}

// Scan 读库
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(2)
	return nil
}

func (m Money) String() string {
	return m.Decimal.Round(2).StringFixed(2)
}
