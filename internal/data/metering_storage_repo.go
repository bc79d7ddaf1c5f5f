package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/data/model"
)

// meteringStorageRepo 对象存储计量单仓库实现，存储桶只归属用户
type meteringStorageRepo struct {
	data *Data
	log  *log.Helper
}

// NewMeteringStorageRepo 创建对象存储计量单仓库
func NewMeteringStorageRepo(data *Data, logger log.Logger) biz.MeteringStorageRepo {
	return &meteringStorageRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toBizMeteringStorage(m *model.MeteringObjectStorage) *biz.MeteringObjectStorage {
	return &biz.MeteringObjectStorage{
		ID:               m.ID,
		StorageBucketID:  m.StorageBucketID,
		BucketName:       m.BucketName,
		Date:             m.Date,
		ServiceID:        m.ServiceID,
		StorageByteHours: m.StorageByteHours,
		DownstreamFlow:   m.DownstreamFlow,
		GetRequestCount:  m.GetRequestCount,
		PutRequestCount:  m.PutRequestCount,
		OriginalAmount:   m.OriginalAmount,
		TradeAmount:      m.TradeAmount,
		DailyStatementID: m.DailyStatementID,
		UserID:           m.UserID,
		Username:         m.Username,
		CreatedAt:        m.CreatedAt,
	}
}

func (r *meteringStorageRepo) applyFilter(db *gorm.DB, filter *biz.MeteringFilter) *gorm.DB {
	if filter.InstanceID != "" {
		db = db.Where("storage_bucket_id = ?", filter.InstanceID)
	}
	if filter.ServiceID != "" {
		db = db.Where("service_id = ?", filter.ServiceID)
	}
	if filter.UserID != "" {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.DateStart != nil {
		db = db.Where("date >= ?", *filter.DateStart)
	}
	if filter.DateEnd != nil {
		db = db.Where("date <= ?", *filter.DateEnd)
	}
	return db
}

// Create 创建计量单，(storage_bucket_id, date)唯一
func (r *meteringStorageRepo) Create(ctx context.Context, m *biz.MeteringObjectStorage) error {
	err := r.data.DB(ctx).Create(&model.MeteringObjectStorage{
		ID:               m.ID,
		StorageBucketID:  m.StorageBucketID,
		BucketName:       m.BucketName,
		Date:             m.Date,
		ServiceID:        m.ServiceID,
		StorageByteHours: m.StorageByteHours,
		DownstreamFlow:   m.DownstreamFlow,
		GetRequestCount:  m.GetRequestCount,
		PutRequestCount:  m.PutRequestCount,
		OriginalAmount:   m.OriginalAmount,
		TradeAmount:      m.TradeAmount,
		DailyStatementID: m.DailyStatementID,
		UserID:           m.UserID,
		Username:         m.Username,
	}).Error
	if err != nil {
		r.log.Errorf("Failed to create storage metering of bucket %s: %v", m.StorageBucketID, err)
	}
	return err
}

// List 查询计量单列表
func (r *meteringStorageRepo) List(ctx context.Context, filter *biz.MeteringFilter) ([]*biz.MeteringObjectStorage, int64, error) {
	db := r.applyFilter(r.data.DB(ctx).Model(&model.MeteringObjectStorage{}), filter)

	var count int64
	if err := db.Count(&count).Error; err != nil {
		r.log.Errorf("Failed to count storage meterings: %v", err)
		return nil, 0, err
	}

	var ms []model.MeteringObjectStorage
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order("date DESC").Offset(offset).Limit(filter.PageSize).Find(&ms).Error; err != nil {
		r.log.Errorf("Failed to list storage meterings: %v", err)
		return nil, 0, err
	}

	out := make([]*biz.MeteringObjectStorage, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringStorage(&ms[i]))
	}
	return out, count, nil
}

// ListUnstatemented 指定日期未汇入结算单的计量单，对象存储全部按量计费
func (r *meteringStorageRepo) ListUnstatemented(ctx context.Context, date time.Time) ([]*biz.MeteringObjectStorage, error) {
	var ms []model.MeteringObjectStorage
	err := r.data.DB(ctx).
		Where("date = ? AND (daily_statement_id = '' OR daily_statement_id IS NULL)", date).
		Find(&ms).Error
	if err != nil {
		r.log.Errorf("Failed to list unstatemented storage meterings: %v", err)
		return nil, err
	}
	out := make([]*biz.MeteringObjectStorage, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringStorage(&ms[i]))
	}
	return out, nil
}

// AttachStatement 把一批计量单回填到一张日结算单
func (r *meteringStorageRepo) AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error {
	if len(meteringIDs) == 0 {
		return nil
	}
	err := r.data.DB(ctx).Model(&model.MeteringObjectStorage{}).
		Where("metering_id IN ?", meteringIDs).
		Update("daily_statement_id", statementID).Error
	if err != nil {
		r.log.Errorf("Failed to attach storage meterings to statement %s: %v", statementID, err)
	}
	return err
}

// ListByStatementID 查询一张结算单汇总的计量单
func (r *meteringStorageRepo) ListByStatementID(ctx context.Context, statementID string) ([]*biz.MeteringObjectStorage, error) {
	var ms []model.MeteringObjectStorage
	err := r.data.DB(ctx).Where("daily_statement_id = ?", statementID).Find(&ms).Error
	if err != nil {
		r.log.Errorf("Failed to list storage meterings of statement %s: %v", statementID, err)
		return nil, err
	}
	out := make([]*biz.MeteringObjectStorage, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringStorage(&ms[i]))
	}
	return out, nil
}
