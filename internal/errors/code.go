package errors

import (
	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 订单计费服务错误定义
// 每种失败情形对应一个命名的错误原因(reason)，错误携带HTTP状态码、
// 机器可读的code字符串和人类可读的message，调用方按错误种类分支处理。

// 错误原因定义
const (
	ReasonInternalError         = "InternalError"
	ReasonBadRequest            = "BadRequest"
	ReasonInvalidArgument       = "InvalidArgument"
	ReasonAccessDenied          = "AccessDenied"
	ReasonNotFound              = "NotFound"
	ReasonConflict              = "Conflict"
	ReasonTryAgainLater         = "TryAgainLater"
	ReasonBalanceNotEnough      = "BalanceNotEnough"
	ReasonQuotaShortage         = "QuotaShortageError"
	ReasonOrderTradingClosed    = "OrderTradingClosed"
	ReasonOrderTradingCompleted = "OrderTradingCompleted"
	ReasonOrderPaid             = "OrderPaid"
	ReasonOrderUnpaid           = "OrderUnpaid"
	ReasonOrderCancelled        = "OrderCancelled"
	ReasonOrderRefund           = "OrderRefund"
	ReasonOrderStatusUnknown    = "OrderStatusUnknown"
	ReasonOrderDelivering       = "OrderDelivering"
	ReasonOrderActionUnknown    = "OrderActionUnknown"
	ReasonPeriodTooLong         = "PeriodTooLong"
	ReasonConflictTradingStatus = "ConflictTradingStatus"
)

// Error 通用错误(400)
func Error(message string) *kerrors.Error {
	return kerrors.New(400, ReasonBadRequest, message)
}

// InvalidArgument 无效参数错误(400)
func InvalidArgument(message string) *kerrors.Error {
	return kerrors.New(400, ReasonInvalidArgument, message)
}

// AccessDenied 访问权限错误(403)
func AccessDenied(message string) *kerrors.Error {
	return kerrors.New(403, ReasonAccessDenied, message)
}

// NotFound 目标不存在错误(404)
func NotFound(message string) *kerrors.Error {
	return kerrors.New(404, ReasonNotFound, message)
}

// Conflict 冲突错误(409)，code区分具体的冲突种类
func Conflict(code, message string) *kerrors.Error {
	if code == "" {
		code = ReasonConflict
	}
	return kerrors.New(409, code, message)
}

// TryAgainLater 稍后重试错误(409)
func TryAgainLater(message string) *kerrors.Error {
	return kerrors.New(409, ReasonTryAgainLater, message)
}

// BalanceNotEnough 余额不足错误(409)
func BalanceNotEnough(message string) *kerrors.Error {
	if message == "" {
		message = "余额不足"
	}
	return kerrors.New(409, ReasonBalanceNotEnough, message)
}

// QuotaShortage 配额不足错误(409)
func QuotaShortage(message string) *kerrors.Error {
	return kerrors.New(409, ReasonQuotaShortage, message)
}

// OrderTradingClosed 订单交易已关闭错误(409)
func OrderTradingClosed(message string) *kerrors.Error {
	if message == "" {
		message = "订单交易已关闭"
	}
	return kerrors.New(409, ReasonOrderTradingClosed, message)
}

// OrderTradingCompleted 订单交易已完成错误(409)
func OrderTradingCompleted(message string) *kerrors.Error {
	if message == "" {
		message = "订单交易已完成"
	}
	return kerrors.New(409, ReasonOrderTradingCompleted, message)
}

// OrderPaid 订单已支付错误(409)
func OrderPaid(message string) *kerrors.Error {
	if message == "" {
		message = "订单已支付"
	}
	return kerrors.New(409, ReasonOrderPaid, message)
}

// OrderUnpaid 订单未支付错误(409)
func OrderUnpaid(message string) *kerrors.Error {
	if message == "" {
		message = "订单未支付"
	}
	return kerrors.New(409, ReasonOrderUnpaid, message)
}

// OrderCancelled 订单已作废错误(409)
func OrderCancelled(message string) *kerrors.Error {
	if message == "" {
		message = "订单已作废"
	}
	return kerrors.New(409, ReasonOrderCancelled, message)
}

// OrderRefund 订单已退款或退款中错误(409)
func OrderRefund(message string) *kerrors.Error {
	if message == "" {
		message = "订单已退款"
	}
	return kerrors.New(409, ReasonOrderRefund, message)
}

// OrderStatusUnknown 未知状态订单错误(500)
func OrderStatusUnknown(message string) *kerrors.Error {
	if message == "" {
		message = "未知状态的订单"
	}
	return kerrors.New(500, ReasonOrderStatusUnknown, message)
}

// ConvertToError 将意外的底层错误包装为500错误，避免内部细节泄露给调用方；
// 已经是类型化错误的原样返回。
func ConvertToError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*kerrors.Error); ok {
		return e
	}
	return kerrors.New(500, ReasonInternalError, err.Error())
}

// IsNotFound 目标不存在错误判定
func IsNotFound(err error) bool {
	return kerrors.Reason(err) == ReasonNotFound
}

// IsAccessDenied 访问权限错误判定
func IsAccessDenied(err error) bool {
	return kerrors.Reason(err) == ReasonAccessDenied
}

// IsOrderTradingClosed 订单交易已关闭错误判定
func IsOrderTradingClosed(err error) bool {
	return kerrors.Reason(err) == ReasonOrderTradingClosed
}

// IsOrderTradingCompleted 订单交易已完成错误判定
func IsOrderTradingCompleted(err error) bool {
	return kerrors.Reason(err) == ReasonOrderTradingCompleted
}

// IsOrderPaid 订单已支付错误判定
func IsOrderPaid(err error) bool {
	return kerrors.Reason(err) == ReasonOrderPaid
}

// IsOrderCancelled 订单已作废错误判定
func IsOrderCancelled(err error) bool {
	return kerrors.Reason(err) == ReasonOrderCancelled
}

// IsOrderRefund 订单已退款错误判定
func IsOrderRefund(err error) bool {
	return kerrors.Reason(err) == ReasonOrderRefund
}

// IsTryAgainLater 稍后重试错误判定
func IsTryAgainLater(err error) bool {
	return kerrors.Reason(err) == ReasonTryAgainLater
}

// IsBalanceNotEnough 余额不足错误判定
func IsBalanceNotEnough(err error) bool {
	return kerrors.Reason(err) == ReasonBalanceNotEnough
}
