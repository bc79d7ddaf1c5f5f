package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 每日计量单模型，每个资源实例每天一条，由离线计量任务创建后不再修改，
// 汇入日结算单时只回填daily_statement_id。
// 归属人是用户或者vo组二选一，owner_type区分。

// MeteringServer 云主机每日计量单
type MeteringServer struct {
	ID               string          `gorm:"primaryKey;column:metering_id;type:varchar(36)"`
	ServerID         string          `gorm:"column:server_id;type:varchar(36);not null;uniqueIndex:uk_server_date,priority:1"`
	Date             time.Time       `gorm:"column:date;type:date;not null;uniqueIndex:uk_server_date,priority:2;index:idx_date"`
	ServiceID        string          `gorm:"column:service_id;type:varchar(36);index:idx_service_id"`
	CPUHours         float64         `gorm:"column:cpu_hours;default:0"`       // 核时
	RamHours         float64         `gorm:"column:ram_hours;default:0"`       // GiB时
	DiskHours        float64         `gorm:"column:disk_hours;default:0"`      // 系统盘GiB时
	PublicIPHours    float64         `gorm:"column:public_ip_hours;default:0"` // 公网IP小时
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount;type:decimal(10,2);not null"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount;type:decimal(10,2);not null"`
	DailyStatementID string          `gorm:"column:daily_statement_id;type:varchar(36);index:idx_daily_statement_id"`
	PayType          string          `gorm:"column:pay_type;type:varchar(16);not null"`
	UserID           string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username         string          `gorm:"column:username;type:varchar(64)"`
	VoID             string          `gorm:"column:vo_id;type:varchar(36);index:idx_vo_id"`
	VoName           string          `gorm:"column:vo_name;type:varchar(255)"`
	OwnerType        string          `gorm:"column:owner_type;type:varchar(8);not null"`
	CreatedAt        time.Time       `gorm:"column:creation_time;autoCreateTime"`
}

func (MeteringServer) TableName() string { return "metering_server" }

// MeteringDisk 云硬盘每日计量单
type MeteringDisk struct {
	ID               string          `gorm:"primaryKey;column:metering_id;type:varchar(36)"`
	DiskID           string          `gorm:"column:disk_id;type:varchar(36);not null;uniqueIndex:uk_disk_date,priority:1"`
	Date             time.Time       `gorm:"column:date;type:date;not null;uniqueIndex:uk_disk_date,priority:2;index:idx_date"`
	ServiceID        string          `gorm:"column:service_id;type:varchar(36);index:idx_service_id"`
	SizeHours        float64         `gorm:"column:size_hours;default:0"` // 容量GiB时
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount;type:decimal(10,2);not null"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount;type:decimal(10,2);not null"`
	DailyStatementID string          `gorm:"column:daily_statement_id;type:varchar(36);index:idx_daily_statement_id"`
	PayType          string          `gorm:"column:pay_type;type:varchar(16);not null"`
	UserID           string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username         string          `gorm:"column:username;type:varchar(64)"`
	VoID             string          `gorm:"column:vo_id;type:varchar(36);index:idx_vo_id"`
	VoName           string          `gorm:"column:vo_name;type:varchar(255)"`
	OwnerType        string          `gorm:"column:owner_type;type:varchar(8);not null"`
	CreatedAt        time.Time       `gorm:"column:creation_time;autoCreateTime"`
}

func (MeteringDisk) TableName() string { return "metering_disk" }

// MeteringObjectStorage 对象存储桶每日计量单，存储桶只归属用户
type MeteringObjectStorage struct {
	ID               string          `gorm:"primaryKey;column:metering_id;type:varchar(36)"`
	StorageBucketID  string          `gorm:"column:storage_bucket_id;type:varchar(36);not null;uniqueIndex:uk_bucket_date,priority:1"`
	BucketName       string          `gorm:"column:bucket_name;type:varchar(255)"`
	Date             time.Time       `gorm:"column:date;type:date;not null;uniqueIndex:uk_bucket_date,priority:2;index:idx_date"`
	ServiceID        string          `gorm:"column:service_id;type:varchar(36);index:idx_service_id"`
	StorageByteHours float64         `gorm:"column:storage_byte_hours;default:0"` // 存储容量GiB时
	DownstreamFlow   float64         `gorm:"column:downstream_flow;default:0"`    // 下行流量GiB
	GetRequestCount  int64           `gorm:"column:get_request_count;default:0"`
	PutRequestCount  int64           `gorm:"column:put_request_count;default:0"`
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount;type:decimal(10,2);not null"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount;type:decimal(10,2);not null"`
	DailyStatementID string          `gorm:"column:daily_statement_id;type:varchar(36);index:idx_daily_statement_id"`
	UserID           string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username         string          `gorm:"column:username;type:varchar(64)"`
	CreatedAt        time.Time       `gorm:"column:creation_time;autoCreateTime"`
}

func (MeteringObjectStorage) TableName() string { return "metering_object_storage" }

// MeteringMonitorWebsite 站点监控每日计量单，监控任务只归属用户
type MeteringMonitorWebsite struct {
	ID               string          `gorm:"primaryKey;column:metering_id;type:varchar(36)"`
	WebsiteID        string          `gorm:"column:website_id;type:varchar(36);not null;uniqueIndex:uk_website_date,priority:1"`
	WebsiteName      string          `gorm:"column:website_name;type:varchar(255)"`
	Date             time.Time       `gorm:"column:date;type:date;not null;uniqueIndex:uk_website_date,priority:2;index:idx_date"`
	Hours            float64         `gorm:"column:hours;default:0"` // 监控小时数
	DetectionCount   int64           `gorm:"column:detection_count;default:0"`
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount;type:decimal(10,2);not null"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount;type:decimal(10,2);not null"`
	DailyStatementID string          `gorm:"column:daily_statement_id;type:varchar(36);index:idx_daily_statement_id"`
	UserID           string          `gorm:"column:user_id;type:varchar(36);index:idx_user_id"`
	Username         string          `gorm:"column:username;type:varchar(64)"`
	CreatedAt        time.Time       `gorm:"column:creation_time;autoCreateTime"`
}

func (MeteringMonitorWebsite) TableName() string { return "metering_monitor_website" }
