package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/data/model"
)

// meteringWebsiteRepo 站点监控计量单仓库实现，监控任务只归属用户
type meteringWebsiteRepo struct {
	data *Data
	log  *log.Helper
}

// NewMeteringWebsiteRepo 创建站点监控计量单仓库
func NewMeteringWebsiteRepo(data *Data, logger log.Logger) biz.MeteringWebsiteRepo {
	return &meteringWebsiteRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toBizMeteringWebsite(m *model.MeteringMonitorWebsite) *biz.MeteringMonitorWebsite {
	return &biz.MeteringMonitorWebsite{
		ID:               m.ID,
		WebsiteID:        m.WebsiteID,
		WebsiteName:      m.WebsiteName,
		Date:             m.Date,
		Hours:            m.Hours,
		DetectionCount:   m.DetectionCount,
		OriginalAmount:   m.OriginalAmount,
		TradeAmount:      m.TradeAmount,
		DailyStatementID: m.DailyStatementID,
		UserID:           m.UserID,
		Username:         m.Username,
		CreatedAt:        m.CreatedAt,
	}
}

func (r *meteringWebsiteRepo) applyFilter(db *gorm.DB, filter *biz.MeteringFilter) *gorm.DB {
	if filter.InstanceID != "" {
		db = db.Where("website_id = ?", filter.InstanceID)
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

// Create 创建计量单，(website_id, date)唯一
func (r *meteringWebsiteRepo) Create(ctx context.Context, m *biz.MeteringMonitorWebsite) error {
	err := r.data.DB(ctx).Create(&model.MeteringMonitorWebsite{
		ID:               m.ID,
		WebsiteID:        m.WebsiteID,
		WebsiteName:      m.WebsiteName,
		Date:             m.Date,
		Hours:            m.Hours,
		DetectionCount:   m.DetectionCount,
		OriginalAmount:   m.OriginalAmount,
		TradeAmount:      m.TradeAmount,
		DailyStatementID: m.DailyStatementID,
		UserID:           m.UserID,
		Username:         m.Username,
	}).Error
	if err != nil {
		r.log.Errorf("Failed to create website metering of %s: %v", m.WebsiteID, err)
	}
	return err
}

// List 查询计量单列表
func (r *meteringWebsiteRepo) List(ctx context.Context, filter *biz.MeteringFilter) ([]*biz.MeteringMonitorWebsite, int64, error) {
	db := r.applyFilter(r.data.DB(ctx).Model(&model.MeteringMonitorWebsite{}), filter)

	var count int64
	if err := db.Count(&count).Error; err != nil {
		r.log.Errorf("Failed to count website meterings: %v", err)
		return nil, 0, err
	}

	var ms []model.MeteringMonitorWebsite
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order("date DESC").Offset(offset).Limit(filter.PageSize).Find(&ms).Error; err != nil {
		r.log.Errorf("Failed to list website meterings: %v", err)
		return nil, 0, err
	}

	out := make([]*biz.MeteringMonitorWebsite, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringWebsite(&ms[i]))
	}
	return out, count, nil
}

// ListUnstatemented 指定日期未汇入结算单的计量单，站点监控全部按量计费
func (r *meteringWebsiteRepo) ListUnstatemented(ctx context.Context, date time.Time) ([]*biz.MeteringMonitorWebsite, error) {
	var ms []model.MeteringMonitorWebsite
	err := r.data.DB(ctx).
		Where("date = ? AND (daily_statement_id = '' OR daily_statement_id IS NULL)", date).
		Find(&ms).Error
	if err != nil {
		r.log.Errorf("Failed to list unstatemented website meterings: %v", err)
		return nil, err
	}
	out := make([]*biz.MeteringMonitorWebsite, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringWebsite(&ms[i]))
	}
	return out, nil
}

// AttachStatement 把一批计量单回填到一张日结算单
func (r *meteringWebsiteRepo) AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error {
	if len(meteringIDs) == 0 {
		return nil
	}
	err := r.data.DB(ctx).Model(&model.MeteringMonitorWebsite{}).
		Where("metering_id IN ?", meteringIDs).
		Update("daily_statement_id", statementID).Error
	if err != nil {
		r.log.Errorf("Failed to attach website meterings to statement %s: %v", statementID, err)
	}
	return err
}

// ListByStatementID 查询一张结算单汇总的计量单
func (r *meteringWebsiteRepo) ListByStatementID(ctx context.Context, statementID string) ([]*biz.MeteringMonitorWebsite, error) {
	var ms []model.MeteringMonitorWebsite
	err := r.data.DB(ctx).Where("daily_statement_id = ?", statementID).Find(&ms).Error
	if err != nil {
		r.log.Errorf("Failed to list website meterings of statement %s: %v", statementID, err)
		return nil, err
	}
	out := make([]*biz.MeteringMonitorWebsite, 0, len(ms))
	for i := range ms {
		out = append(out, toBizMeteringWebsite(&ms[i]))
	}
	return out, nil
}
