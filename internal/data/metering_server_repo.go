package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/data/model"
)

// meteringServerRepo 云主机计量单仓库实现
type meteringServerRepo struct {
	data *Data
	log  *log.Helper
}

// NewMeteringServerRepo 创建云主机计量单仓库
func NewMeteringServerRepo(data *Data, logger log.Logger) biz.MeteringServerRepo {
	return &meteringServerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// aggregateRow 聚合查询扫描结构，列名与SELECT别名对应
type aggregateRow struct {
	InstanceID     string
	ServiceID      string
	UserID         string
	Username       string
	VoID           string
	VoName         string
	OriginalAmount decimal.Decimal
	TradeAmount    decimal.Decimal
	Count          int64
}

func toBizAggregates(rows []aggregateRow) []*biz.MeteringAggregate {
	out := make([]*biz.MeteringAggregate, 0, len(rows))
	for i := range rows {
		r := rows[i]
		out = append(out, &biz.MeteringAggregate{
			InstanceID:     r.InstanceID,
			ServiceID:      r.ServiceID,
			UserID:         r.UserID,
			Username:       r.Username,
			VoID:           r.VoID,
			VoName:         r.VoName,
			OriginalAmount: r.OriginalAmount,
			TradeAmount:    r.TradeAmount,
			Count:          r.Count,
		})
	}
	return out
}

func toBizMeteringServer(m *model.MeteringServer) *biz.MeteringServer {
	return &biz.MeteringServer{
		ID:               m.ID,
		ServerID:         m.ServerID,
		Date:             m.Date,
		ServiceID:        m.ServiceID,
		CPUHours:         m.CPUHours,
		RamHours:         m.RamHours,
		DiskHours:        m.DiskHours,
		PublicIPHours:    m.PublicIPHours,
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

func (r *meteringServerRepo) applyFilter(db *gorm.DB, filter *biz.MeteringFilter) *gorm.DB {
	if filter.InstanceID != "" {
		db = db.Where("server_id = ?", filter.InstanceID)
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

// Create 创建计量单，(server_id, date)唯一
func (r *meteringServerRepo) Create(ctx context.Context, m *biz.MeteringServer) error {
	err := r.data.DB(ctx).Create(&model.MeteringServer{
		ID:               m.ID,
		ServerID:         m.ServerID,
		Date:             m.Date,
		ServiceID:        m.ServiceID,
		CPUHours:         m.CPUHours,
		RamHours:         m.RamHours,
		DiskHours:        m.DiskHours,
		PublicIPHours:    m.PublicIPHours,
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
		r.log.Errorf("Failed to create server metering of %s: %v", m.ServerID, err)
	}
	return err
}

// List 查询计量单列表
func (r *meteringServerRepo) List(ctx context.Context, filter *biz.MeteringFilter) ([]*biz.MeteringServer, int64, error) {
	db := r.applyFilter(r.data.DB(ctx).Model(&model.MeteringServer{}), filter)

	var count int64
	if err := db.Count(&count).Error; err != nil {
		r.log.Errorf("Failed to count server meterings: %v", err)
		return nil, 0, err
	}

	var ms []model.MeteringServer
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order("date DESC").Offset(offset).Limit(filter.PageSize).Find(&ms).Error; err != nil {
		r.log.Errorf("Failed to list server meterings: %v", err)
		return nil, 0, err
	}

	out := make([]*biz.MeteringServer, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringServer(&ms[i]))
	}
	return out, count, nil
}

// Aggregate 按实例/用户/vo组/服务单元分组求和
func (r *meteringServerRepo) Aggregate(
	ctx context.Context, by biz.AggregateBy, filter *biz.MeteringFilter,
) ([]*biz.MeteringAggregate, int64, error) {
	db := r.applyFilter(r.data.DB(ctx).Model(&model.MeteringServer{}), filter)

	var selectExpr, groupCol string
	switch by {
	case biz.AggregateByInstance:
		selectExpr = "server_id AS instance_id, MAX(service_id) AS service_id"
		groupCol = "server_id"
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
		r.log.Errorf("Failed to count server metering aggregation: %v", err)
		return nil, 0, err
	}

	var rows []aggregateRow
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order(groupCol).Offset(offset).Limit(filter.PageSize).Scan(&rows).Error; err != nil {
		r.log.Errorf("Failed to aggregate server meterings: %v", err)
		return nil, 0, err
	}
	return toBizAggregates(rows), count, nil
}

// ListUnstatemented 指定日期未汇入结算单的按量计费计量单
func (r *meteringServerRepo) ListUnstatemented(ctx context.Context, date time.Time) ([]*biz.MeteringServer, error) {
	var ms []model.MeteringServer
	err := r.data.DB(ctx).
		Where("date = ? AND pay_type = ? AND (daily_statement_id = '' OR daily_statement_id IS NULL)",
			date, constants.PayTypePostpaid).
		Find(&ms).Error
	if err != nil {
		r.log.Errorf("Failed to list unstatemented server meterings: %v", err)
		return nil, err
	}
	out := make([]*biz.MeteringServer, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringServer(&ms[i]))
	}
	return out, nil
}

// AttachStatement 把一批计量单回填到一张日结算单
func (r *meteringServerRepo) AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error {
	if len(meteringIDs) == 0 {
		return nil
	}
	err := r.data.DB(ctx).Model(&model.MeteringServer{}).
		Where("metering_id IN ?", meteringIDs).
		Update("daily_statement_id", statementID).Error
	if err != nil {
		r.log.Errorf("Failed to attach server meterings to statement %s: %v", statementID, err)
	}
	return err
}

// ListByStatementID 查询一张结算单汇总的计量单
func (r *meteringServerRepo) ListByStatementID(ctx context.Context, statementID string) ([]*biz.MeteringServer, error) {
	var ms []model.MeteringServer
	err := r.data.DB(ctx).Where("daily_statement_id = ?", statementID).Find(&ms).Error
	if err != nil {
		r.log.Errorf("Failed to list server meterings of statement %s: %v", statementID, err)
		return nil, err
	}
	out := make([]*biz.MeteringServer, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringServer(&ms[i]))
	}
	return out, nil
}
