package biz

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceClient 余额结算服务客户端接口(防腐层)
type BalanceClient interface {
	// HasEnoughBalanceUser 用户余额是否足够支付指定金额
	HasEnoughBalanceUser(ctx context.Context, userID string, money decimal.Decimal, withCoupons bool, appServiceID string) (bool, error)
	// HasEnoughBalanceVo vo组余额是否足够支付指定金额
	HasEnoughBalanceVo(ctx context.Context, voID string, money decimal.Decimal, withCoupons bool, appServiceID string) (bool, error)
	// PayDailyStatement 从归属人的余额/资源券账户扣除一张日结算单的金额
	PayDailyStatement(ctx context.Context, req *PayStatementRequest) (*PayStatementResult, error)
}

// PayStatementRequest 日结算单扣费请求
type PayStatementRequest struct {
	AppID        string
	AppServiceID string
	StatementID  string
	Subject      string
	Remark       string
	Amount       decimal.Decimal
	OwnerID      string // user_id或vo_id，由OwnerType区分
	OwnerType    string
}

// PayStatementResult 日结算单扣费结果
type PayStatementResult struct {
	PaymentHistoryID string
	BalanceAmount    decimal.Decimal // 余额支付部分
	CouponAmount     decimal.Decimal // 资源券支付部分
}

// DeliverResult 资源交付结果
type DeliverResult struct {
	InstanceID string // 后端服务单元实际创建的实例id，可能与订单中预生成的不同
	StartTime  time.Time
	DueTime    time.Time
}

// ResourceDeliverer 订单资源交付客户端接口(防腐层)，
// 消费一个已支付订单的资源记录，调用后端服务单元适配器完成资源供给。
// 调用发生在任何行锁之外，交付结果由OrderUsecase在锁内落库。
type ResourceDeliverer interface {
	Deliver(ctx context.Context, order *Order, resource *Resource) (*DeliverResult, error)
}
