package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 订单模型
// status跟踪支付/退款，trading_status跟踪资源交付，两个状态轴正交
type Order struct {
	ID             string          `gorm:"primaryKey;column:order_id;type:varchar(36)"`
	OrderType      string          `gorm:"column:order_type;type:varchar(16);not null"` // new, renewal, post2pre
	Status         string          `gorm:"column:status;type:varchar(16);not null;index:idx_status"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:decimal(10,2);not null"`   // 原价金额
	PayableAmount  decimal.Decimal `gorm:"column:payable_amount;type:decimal(10,2);not null"` // 应付金额
	PayAmount      decimal.Decimal `gorm:"column:pay_amount;type:decimal(10,2);not null"`     // 实付金额
	BalanceAmount  decimal.Decimal `gorm:"column:balance_amount;type:decimal(10,2);not null"` // 余额支付金额
	CouponAmount   decimal.Decimal `gorm:"column:coupon_amount;type:decimal(10,2);not null"`  // 资源券支付金额
	AppServiceID   string          `gorm:"column:app_service_id;type:varchar(36);index:idx_app_service_id"`
	ServiceID      string          `gorm:"column:service_id;type:varchar(36);index:idx_service_id"`
	ServiceName    string          `gorm:"column:service_name;type:varchar(255)"`
	ResourceType   string          `gorm:"column:resource_type;type:varchar(16);not null"`
	InstanceConfig string          `gorm:"column:instance_config;type:json"` // 订购资源规格快照
	Period         int             `gorm:"column:period;not null"`           // 订购时长
	PeriodUnit     string          `gorm:"column:period_unit;type:varchar(8);default:'month'"`
	PayType        string          `gorm:"column:pay_type;type:varchar(16);not null"`
	PaymentTime    *time.Time      `gorm:"column:payment_time"`
	StartTime      *time.Time      `gorm:"column:start_time"`
	EndTime        *time.Time      `gorm:"column:end_time"`
	UserID         string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username       string          `gorm:"column:username;type:varchar(64)"`
	VoID           string          `gorm:"column:vo_id;type:varchar(36);index:idx_vo_id"`
	VoName         string          `gorm:"column:vo_name;type:varchar(255)"`
	OwnerType      string          `gorm:"column:owner_type;type:varchar(8);not null"` // user, vo
	Deleted        bool            `gorm:"column:deleted;default:false"`               // 软删除标记
	TradingStatus  string          `gorm:"column:trading_status;type:varchar(16);not null"`
	CompletionTime *time.Time      `gorm:"column:completion_time"` // 交易完成时间
	OrderAction    string          `gorm:"column:order_action;type:varchar(16);default:'none'"`
	Number         int             `gorm:"column:number;default:1"` // 订购资源数量
	Description    string          `gorm:"column:description;type:varchar(255)"`
	CreatedAt      time.Time       `gorm:"column:creation_time;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:update_time;autoUpdateTime"`
}

func (Order) TableName() string { return "order" }
