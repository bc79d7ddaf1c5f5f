package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/data/model"
)

// meteringDiskRepo 云硬盘计量单仓库实现
type meteringDiskRepo struct {
	data *Data
	log  *log.Helper
}

// NewMeteringDiskRepo 创建云硬盘计量单仓库
func NewMeteringDiskRepo(data *Data, logger log.Logger) biz.MeteringDiskRepo {
	return &meteringDiskRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toBizMeteringDisk(m *model.MeteringDisk) *biz.MeteringDisk {
	return &biz.MeteringDisk{
		ID:               m.ID,
		DiskID:           m.DiskID,
		Date:             m.Date,
		ServiceID:        m.ServiceID,
		SizeHours:        m.SizeHours,
		OriginalAmount:   m.OriginalAmount,
		TradeAmount:      m.TradeAmount,
		DailyStatementID: m.DailyStatementID,
		PayType:          m.PayType,
		UserID:           m.UserID,
		Username:         m.Username,
		VoID:             m.VoID,
		VoName:           m.VoName,
		OwnerType:        m.OwnerType,
		CreatedAt:        m.CreatedAt,
	}
}

func (r *meteringDiskRepo) applyFilter(db *gorm.DB, filter *biz.MeteringFilter) *gorm.DB {
	if filter.InstanceID != "" {
		db = db.Where("disk_id = ?", filter.InstanceID)
	}
	if filter.ServiceID != "" {
		db = db.Where("service_id = ?", filter.ServiceID)
	}
	if filter.VoID != "" {
		db = db.Where("vo_id = ? AND owner_type = ?", filter.VoID, constants.OwnerTypeVo)
	} else if filter.UserID != "" {
		db = db.Where("user_id = ? AND owner_type = ?", filter.UserID, constants.OwnerTypeUser)
	}
	if filter.DateStart != nil {
		db = db.Where("date >= ?", *filter.DateStart)
	}
	if filter.DateEnd != nil {
		db = db.Where("date <= ?", *filter.DateEnd)
	}
	return db
}

// Create 创建计量单，(disk_id, date)唯一
func (r *meteringDiskRepo) Create(ctx context.Context, m *biz.MeteringDisk) error {
	err := r.data.DB(ctx).Create(&model.MeteringDisk{
		ID:               m.ID,
		DiskID:           m.DiskID,
		Date:             m.Date,
		ServiceID:        m.ServiceID,
		SizeHours:        m.SizeHours,
		OriginalAmount:   m.OriginalAmount,
		TradeAmount:      m.TradeAmount,
		DailyStatementID: m.DailyStatementID,
		PayType:          m.PayType,
		UserID:           m.UserID,
		Username:         m.Username,
		VoID:             m.VoID,
		VoName:           m.VoName,
		OwnerType:        m.OwnerType,
	}).Error
	if err != nil {
		r.log.Errorf("Failed to create disk metering of %s: %v", m.DiskID, err)
	}
	return err
}

// List 查询计量单列表
func (r *meteringDiskRepo) List(ctx context.Context, filter *biz.MeteringFilter) ([]*biz.MeteringDisk, int64, error) {
	db := r.applyFilter(r.data.DB(ctx).Model(&model.MeteringDisk{}), filter)

	var count int64
	if err := db.Count(&count).Error; err != nil {
		r.log.Errorf("Failed to count disk meterings: %v", err)
		return nil, 0, err
	}

	var ms []model.MeteringDisk
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order("date DESC").Offset(offset).Limit(filter.PageSize).Find(&ms).Error; err != nil {
		r.log.Errorf("Failed to list disk meterings: %v", err)
		return nil, 0, err
	}

	out := make([]*biz.MeteringDisk, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringDisk(&ms[i]))
	}
	return out, count, nil
}

// Aggregate 按实例/用户/vo组/服务单元分组求和
func (r *meteringDiskRepo) Aggregate(
	ctx context.Context, by biz.AggregateBy, filter *biz.MeteringFilter,
) ([]*biz.MeteringAggregate, int64, error) {
	db := r.applyFilter(r.data.DB(ctx).Model(&model.MeteringDisk{}), filter)

	var selectExpr, groupCol string
	switch by {
	case biz.AggregateByInstance:
		selectExpr = "disk_id AS instance_id, MAX(service_id) AS service_id"
		groupCol = "disk_id"
	case biz.AggregateByUser:
		selectExpr = "user_id, MAX(username) AS username"
		groupCol = "user_id"
		db = db.Where("owner_type = ?", constants.OwnerTypeUser)
	case biz.AggregateByVo:
		selectExpr = "vo_id, MAX(vo_name) AS vo_name"
		groupCol = "vo_id"
		db = db.Where("owner_type = ?", constants.OwnerTypeVo)
	case biz.AggregateByService:
		selectExpr = "service_id"
		groupCol = "service_id"
	}
	db = db.Select(selectExpr +
		", SUM(original_amount) AS original_amount, SUM(trade_amount) AS trade_amount, COUNT(*) AS count").
		Group(groupCol)

	var count int64
	if err := r.data.DB(ctx).Table("(?) AS t", db.Session(&gorm.Session{})).Count(&count).Error; err != nil {
		r.log.Errorf("Failed to count disk metering aggregation: %v", err)
		return nil, 0, err
	}

	var rows []aggregateRow
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order(groupCol).Offset(offset).Limit(filter.PageSize).Scan(&rows).Error; err != nil {
		r.log.Errorf("Failed to aggregate disk meterings: %v", err)
		return nil, 0, err
	}
	return toBizAggregates(rows), count, nil
}

// ListUnstatemented 指定日期未汇入结算单的按量计费计量单
func (r *meteringDiskRepo) ListUnstatemented(ctx context.Context, date time.Time) ([]*biz.MeteringDisk, error) {
	var ms []model.MeteringDisk
	err := r.data.DB(ctx).
		Where("date = ? AND pay_type = ? AND (daily_statement_id = '' OR daily_statement_id IS NULL)",
			date, constants.PayTypePostpaid).
		Find(&ms).Error
	if err != nil {
		r.log.Errorf("Failed to list unstatemented disk meterings: %v", err)
		return nil, err
	}
	out := make([]*biz.MeteringDisk, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringDisk(&ms[i]))
	}
	return out, nil
}

// AttachStatement 把一批计量单回填到一张日结算单
func (r *meteringDiskRepo) AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error {
	if len(meteringIDs) == 0 {
		return nil
	}
	err := r.data.DB(ctx).Model(&model.MeteringDisk{}).
		Where("metering_id IN ?", meteringIDs).
		Update("daily_statement_id", statementID).Error
	if err != nil {
		r.log.Errorf("Failed to attach disk meterings to statement %s: %v", statementID, err)
	}
	return err
}

// ListByStatementID 查询一张结算单汇总的计量单
func (r *meteringDiskRepo) ListByStatementID(ctx context.Context, statementID string) ([]*biz.MeteringDisk, error) {
	var ms []model.MeteringDisk
	err := r.data.DB(ctx).Where("daily_statement_id = ?", statementID).Find(&ms).Error
	if err != nil {
		r.log.Errorf("Failed to list disk meterings of statement %s: %v", statementID, err)
		return nil, err
	}
	out := make([]*biz.MeteringDisk, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringDisk(&ms[i]))
	}
	return out, nil
}
