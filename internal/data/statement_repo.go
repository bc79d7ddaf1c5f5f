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
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// statementRepo 日结算单仓库实现。
// 四种资源的结算单分表存储但结构一致，统一扫描到statementRow再转业务结构
type statementRepo struct {
	data *Data
	log  *log.Helper
}

// NewStatementRepo 创建日结算单仓库
func NewStatementRepo(data *Data, logger log.Logger) biz.StatementRepo {
	return &statementRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// statementRow 分表共用的扫描结构，列名与各结算单表一致
type statementRow struct {
	ID               string          `gorm:"column:statement_id"`
	Date             time.Time       `gorm:"column:date"`
	ServiceID        string          `gorm:"column:service_id"`
	OriginalAmount   decimal.Decimal `gorm:"column:original_amount"`
	PayableAmount    decimal.Decimal `gorm:"column:payable_amount"`
	TradeAmount      decimal.Decimal `gorm:"column:trade_amount"`
	PaymentStatus    string          `gorm:"column:payment_status"`
	PaymentHistoryID string          `gorm:"column:payment_history_id"`
	UserID           string          `gorm:"column:user_id"`
	Username         string          `gorm:"column:username"`
	VoID             string          `gorm:"column:vo_id"`
	VoName           string          `gorm:"column:vo_name"`
	OwnerType        string          `gorm:"column:owner_type"`
	CreatedAt        time.Time       `gorm:"column:creation_time"`
}

func toBizStatement(row *statementRow) *biz.DailyStatement {
	return &biz.DailyStatement{
		ID:               row.ID,
		Date:             row.Date,
		ServiceID:        row.ServiceID,
		OriginalAmount:   row.OriginalAmount,
		PayableAmount:    row.PayableAmount,
		TradeAmount:      row.TradeAmount,
		PaymentStatus:    row.PaymentStatus,
		PaymentHistoryID: row.PaymentHistoryID,
		UserID:           row.UserID,
		Username:         row.Username,
		VoID:             row.VoID,
		VoName:           row.VoName,
		OwnerType:        row.OwnerType,
		CreatedAt:        row.CreatedAt,
	}
}

// kindModel 结算单资源种类对应的模型实例
func kindModel(kind biz.StatementKind) (interface{}, error) {
	switch kind {
	case biz.StatementKindServer:
		return &model.DailyStatementServer{}, nil
	case biz.StatementKindDisk:
		return &model.DailyStatementDisk{}, nil
	case biz.StatementKindStorage:
		return &model.DailyStatementObjectStorage{}, nil
	case biz.StatementKindWebsite:
		return &model.DailyStatementMonitorWebsite{}, nil
	}
	return nil, errors.InvalidArgument("无效的结算单资源种类")
}

func (r *statementRepo) table(ctx context.Context, kind biz.StatementKind) (*gorm.DB, error) {
	m, err := kindModel(kind)
	if err != nil {
		return nil, err
	}
	return r.data.DB(ctx).Model(m), nil
}

// Create 创建日结算单
func (r *statementRepo) Create(ctx context.Context, kind biz.StatementKind, s *biz.DailyStatement) error {
	var m interface{}
	switch kind {
	case biz.StatementKindServer:
		m = &model.DailyStatementServer{
			ID: s.ID, Date: s.Date, ServiceID: s.ServiceID,
			OriginalAmount: s.OriginalAmount, PayableAmount: s.PayableAmount, TradeAmount: s.TradeAmount,
			PaymentStatus: s.PaymentStatus, PaymentHistoryID: s.PaymentHistoryID,
			UserID: s.UserID, Username: s.Username, VoID: s.VoID, VoName: s.VoName, OwnerType: s.OwnerType,
		}
	case biz.StatementKindDisk:
		m = &model.DailyStatementDisk{
			ID: s.ID, Date: s.Date, ServiceID: s.ServiceID,
			OriginalAmount: s.OriginalAmount, PayableAmount: s.PayableAmount, TradeAmount: s.TradeAmount,
			PaymentStatus: s.PaymentStatus, PaymentHistoryID: s.PaymentHistoryID,
			UserID: s.UserID, Username: s.Username, VoID: s.VoID, VoName: s.VoName, OwnerType: s.OwnerType,
		}
	case biz.StatementKindStorage:
		m = &model.DailyStatementObjectStorage{
			ID: s.ID, Date: s.Date, ServiceID: s.ServiceID,
			OriginalAmount: s.OriginalAmount, PayableAmount: s.PayableAmount, TradeAmount: s.TradeAmount,
			PaymentStatus: s.PaymentStatus, PaymentHistoryID: s.PaymentHistoryID,
			UserID: s.UserID, Username: s.Username,
		}
	case biz.StatementKindWebsite:
		m = &model.DailyStatementMonitorWebsite{
			ID: s.ID, Date: s.Date,
			OriginalAmount: s.OriginalAmount, PayableAmount: s.PayableAmount, TradeAmount: s.TradeAmount,
			PaymentStatus: s.PaymentStatus, PaymentHistoryID: s.PaymentHistoryID,
			UserID: s.UserID, Username: s.Username,
		}
	default:
		return errors.InvalidArgument("无效的结算单资源种类")
	}

	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create %s statement %s: %v", kind, s.ID, err)
		return err
	}
	return nil
}

// Get 获取一张日结算单，不存在返回nil
func (r *statementRepo) Get(ctx context.Context, kind biz.StatementKind, statementID string) (*biz.DailyStatement, error) {
	db, err := r.table(ctx, kind)
	if err != nil {
		return nil, err
	}

	var row statementRow
	err = db.Where("statement_id = ?", statementID).Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		r.log.Errorf("Failed to get %s statement %s: %v", kind, statementID, err)
		return nil, err
	}
	return toBizStatement(&row), nil
}

// List 查询日结算单列表
func (r *statementRepo) List(ctx context.Context, kind biz.StatementKind, filter *biz.StatementFilter) ([]*biz.DailyStatement, int64, error) {
	db, err := r.table(ctx, kind)
	if err != nil {
		return nil, 0, err
	}

	if filter.VoID != "" {
		db = db.Where("vo_id = ? AND owner_type = ?", filter.VoID, constants.OwnerTypeVo)
	} else if filter.UserID != "" {
		if kind == biz.StatementKindServer || kind == biz.StatementKindDisk {
			db = db.Where("user_id = ? AND owner_type = ?", filter.UserID, constants.OwnerTypeUser)
		} else {
			db = db.Where("user_id = ?", filter.UserID)
		}
	}
	if filter.ServiceID != "" {
		db = db.Where("service_id = ?", filter.ServiceID)
	}
	if filter.PaymentStatus != "" {
		db = db.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.DateStart != nil {
		db = db.Where("date >= ?", *filter.DateStart)
	}
	if filter.DateEnd != nil {
		db = db.Where("date <= ?", *filter.DateEnd)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		r.log.Errorf("Failed to count %s statements: %v", kind, err)
		return nil, 0, err
	}

	var rows []statementRow
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order("date DESC").Offset(offset).Limit(filter.PageSize).Scan(&rows).Error; err != nil {
		r.log.Errorf("Failed to list %s statements: %v", kind, err)
		return nil, 0, err
	}

	out := make([]*biz.DailyStatement, 0, len(rows))
	for i := range rows {
		out = append(out, toBizStatement(&rows[i]))
	}
	return out, count, nil
}

// ListUnpaid 指定日期之前(含)所有未支付的结算单
func (r *statementRepo) ListUnpaid(ctx context.Context, kind biz.StatementKind, date time.Time) ([]*biz.DailyStatement, error) {
	db, err := r.table(ctx, kind)
	if err != nil {
		return nil, err
	}

	var rows []statementRow
	err = db.Where("payment_status = ? AND date <= ?", constants.PaymentStatusUnpaid, date).
		Order("date ASC").Scan(&rows).Error
	if err != nil {
		r.log.Errorf("Failed to list unpaid %s statements: %v", kind, err)
		return nil, err
	}

	out := make([]*biz.DailyStatement, 0, len(rows))
	for i := range rows {
		out = append(out, toBizStatement(&rows[i]))
	}
	return out, nil
}

// SetPaid 结算单支付成功，回填实付金额和支付记录id
func (r *statementRepo) SetPaid(
	ctx context.Context, kind biz.StatementKind, statementID string,
	tradeAmount decimal.Decimal, paymentHistoryID string,
) error {
	db, err := r.table(ctx, kind)
	if err != nil {
		return err
	}

	err = db.Where("statement_id = ? AND payment_status = ?", statementID, constants.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"payment_status":     constants.PaymentStatusPaid,
			"trade_amount":       tradeAmount,
			"payment_history_id": paymentHistoryID,
		}).Error
	if err != nil {
		r.log.Errorf("Failed to set %s statement %s paid: %v", kind, statementID, err)
	}
	return err
}
