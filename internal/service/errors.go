package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误分类，决定对外的状态码
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindOwnership
	KindConflict
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindOwnership:
		return "ownership"
	case KindConflict:
		return "conflict"
	case KindInfrastructure:
		return "infrastructure"
	}
	return "unknown"
}

// Error 业务错误
// Message 直接返回给调用方；Err 仅用于日志
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindOwnership:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// PublicMessage 基础设施错误只给出笼统提示
func (e *Error) PublicMessage() string {
	if e.Kind == KindInfrastructure {
		return "服务器内部错误"
	}
	return e.Message
}

var (
	ErrOrderNotFound       = &Error{Kind: KindNotFound, Message: "订单不存在"}
	ErrStudentNotFound     = &Error{Kind: KindNotFound, Message: "学生不存在"}
	ErrMerchantNotFound    = &Error{Kind: KindNotFound, Message: "商户不存在"}
	ErrOrderOwnership      = &Error{Kind: KindOwnership, Message: "订单不属于该学生"}
	ErrOrderNotPayable     = &Error{Kind: KindConflict, Message: "订单已支付或状态不正确"}
	ErrInsufficientBalance = &Error{Kind: KindConflict, Message: "余额不足"}
	ErrStatusTransition    = &Error{Kind: KindConflict, Message: "已完成的订单不能改回待支付"}
	ErrSequenceExhausted   = &Error{Kind: KindConflict, Message: "当日订单序号已用尽"}
	ErrNoUpdatableFields   = &Error{Kind: KindValidation, Message: "没有可更新的字段"}
)

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func infraError(message string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Message: message, Err: err}
}

// KindOf 非 *Error 的错误视为基础设施错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// asServiceError 事务回调里返回的错误统一转成 *Error
func asServiceError(message string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return infraError(message, err)
}
