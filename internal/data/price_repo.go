package data

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/data/model"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// priceRepo 定价仓库实现
type priceRepo struct {
	data *Data
	log  *log.Helper
}

// NewPriceRepo 创建定价仓库
func NewPriceRepo(data *Data, logger log.Logger) biz.PriceRepo {
	return &priceRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetPrice 获取当前生效的定价，最新一条生效
func (r *priceRepo) GetPrice(ctx context.Context) (*biz.Price, error) {
	var m model.Price
	err := r.data.DB(ctx).Order("creation_time DESC").First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Conflict(errors.ReasonConflict, "资源定价未配置")
		}
		r.log.Errorf("Failed to get price: %v", err)
		return nil, err
	}
	return &biz.Price{
		ID:              m.ID,
		VMCPU:           m.VMCPU,
		VMRam:           m.VMRam,
		VMDisk:          m.VMDisk,
		VMPubIP:         m.VMPubIP,
		DiskSize:        m.DiskSize,
		SnapshotSize:    m.SnapshotSize,
		ScanHost:        m.ScanHost,
		ScanWeb:         m.ScanWeb,
		PrepaidDiscount: m.PrepaidDiscount,
	}, nil
}
