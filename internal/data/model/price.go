package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price 资源定价模型，各资源规格项的单位时间单价(每小时)
type Price struct {
	ID              string          `gorm:"primaryKey;column:price_id;type:varchar(36)"`
	VMCPU           decimal.Decimal `gorm:"column:vm_cpu;type:decimal(19,4);not null"`        // 每核每小时
	VMRam           decimal.Decimal `gorm:"column:vm_ram;type:decimal(19,4);not null"`        // 每GiB每小时
	VMDisk          decimal.Decimal `gorm:"column:vm_disk;type:decimal(19,4);not null"`       // 系统盘每GiB每小时
	VMPubIP         decimal.Decimal `gorm:"column:vm_pub_ip;type:decimal(19,4);not null"`     // 公网IP每小时
	DiskSize        decimal.Decimal `gorm:"column:disk_size;type:decimal(19,4);not null"`     // 云硬盘每GiB每小时
	SnapshotSize    decimal.Decimal `gorm:"column:snapshot_size;type:decimal(19,4);not null"` // 快照每GiB每小时
	ScanHost        decimal.Decimal `gorm:"column:scan_host;type:decimal(10,2);not null"`     // 主机扫描单次
	ScanWeb         decimal.Decimal `gorm:"column:scan_web;type:decimal(10,2);not null"`      // 站点扫描单次
	PrepaidDiscount int             `gorm:"column:prepaid_discount;default:100"`              // 预付费折扣，66表示66%
	CreatedAt       time.Time       `gorm:"column:creation_time;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:update_time;autoUpdateTime"`
}

func (Price) TableName() string { return "price" }
