package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 日结算单模型，同一天同归属人同服务单元的计量单汇总为一张结算单，
// 结算单是实际向余额/资源券账户扣费的单位。

// DailyStatementServer 云主机日结算单
type DailyStatementServer struct {
	ID               string          `gorm:"primaryKey;column:statement_id;type:varchar(36)"`
	Date             time.Time       `gorm:"column:date;type:date;not null;index:idx_date"`
	ServiceID        string          `gorm:"column:service_id;type:varchar(36);index:idx_service_id"`
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount;type:decimal(10,2);not null"`
	PayableAmount    decimal.Decimal `gorm:"column:payable_amount;type:decimal(10,2);not null"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount;type:decimal(10,2);not null"` // 实际支付金额
	PaymentStatus    string          `gorm:"column:payment_status;type:varchar(16);not null;index:idx_payment_status"`
	PaymentHistoryID string          `gorm:"column:payment_history_id;type:varchar(36)"`
	UserID           string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username         string          `gorm:"column:username;type:varchar(64)"`
	VoID             string          `gorm:"column:vo_id;type:varchar(36);index:idx_vo_id"`
	VoName           string          `gorm:"column:vo_name;type:varchar(255)"`
	OwnerType        string          `gorm:"column:owner_type;type:varchar(8);not null"`
	CreatedAt        time.Time       `gorm:"column:creation_time;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:update_time;autoUpdateTime"`
}

func (DailyStatementServer) TableName() string { return "daily_statement_server" }

// DailyStatementDisk 云硬盘日结算单
type DailyStatementDisk struct {
	ID               string          `gorm:"primaryKey;column:statement_id;type:varchar(36)"`
	Date             time.Time       `gorm:"column:date;type:date;not null;index:idx_date"`
	ServiceID        string          `gorm:"column:service_id;type:varchar(36);index:idx_service_id"`
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount;type:decimal(10,2);not null"`
	PayableAmount    decimal.Decimal `gorm:"column:payable_amount;type:decimal(10,2);not null"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount;type:decimal(10,2);not null"`
	PaymentStatus    string          `gorm:"column:payment_status;type:varchar(16);not null;index:idx_payment_status"`
	PaymentHistoryID string          `gorm:"column:payment_history_id;type:varchar(36)"`
	UserID           string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username         string          `gorm:"column:username;type:varchar(64)"`
	VoID             string          `gorm:"column:vo_id;type:varchar(36);index:idx_vo_id"`
	VoName           string          `gorm:"column:vo_name;type:varchar(255)"`
	OwnerType        string          `gorm:"column:owner_type;type:varchar(8);not null"`
	CreatedAt        time.Time       `gorm:"column:creation_time;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:update_time;autoUpdateTime"`
}

func (DailyStatementDisk) TableName() string { return "daily_statement_disk" }

// DailyStatementObjectStorage 对象存储日结算单
type DailyStatementObjectStorage struct {
	ID               string          `gorm:"primaryKey;column:statement_id;type:varchar(36)"`
	Date             time.Time       `gorm:"column:date;type:date;not null;index:idx_date"`
	ServiceID        string          `gorm:"column:service_id;type:varchar(36);index:idx_service_id"`
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount;type:decimal(10,2);not null"`
	PayableAmount    decimal.Decimal `gorm:"column:payable_amount;type:decimal(10,2);not null"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount;type:decimal(10,2);not null"`
	PaymentStatus    string          `gorm:"column:payment_status;type:varchar(16);not null;index:idx_payment_status"`
	PaymentHistoryID string          `gorm:"column:payment_history_id;type:varchar(36)"`
	UserID           string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username         string          `gorm:"column:username;type:varchar(64)"`
	CreatedAt        time.Time       `gorm:"column:creation_time;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:update_time;autoUpdateTime"`
}

func (DailyStatementObjectStorage) TableName() string { return "daily_statement_object_storage" }

// DailyStatementMonitorWebsite 站点监控日结算单
type DailyStatementMonitorWebsite struct {
	ID               string          `gorm:"primaryKey;column:statement_id;type:varchar(36)"`
	Date             time.Time       `gorm:"column:date;type:date;not null;index:idx_date"`
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount;type:decimal(10,2);not null"`
	PayableAmount    decimal.Decimal `gorm:"column:payable_amount;type:decimal(10,2);not null"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount;type:decimal(10,2);not null"`
	PaymentStatus    string          `gorm:"column:payment_status;type:varchar(16);not null;index:idx_payment_status"`
	PaymentHistoryID string          `gorm:"column:payment_history_id;type:varchar(36)"`
	UserID           string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username         string          `gorm:"column:username;type:varchar(64)"`
	CreatedAt        time.Time       `gorm:"column:creation_time;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:update_time;autoUpdateTime"`
}

func (DailyStatementMonitorWebsite) TableName() string { return "daily_statement_monitor_website" }
