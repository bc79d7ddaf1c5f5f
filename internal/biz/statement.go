package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/conf"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// 日结算单。同一天同归属人同服务单元的按量计费计量单汇总为一张结算单，
// 结算单是实际向余额/资源券账户扣费的单位。

// DailyStatement 日结算单，四种资源类型共用一个业务结构，
// 站点监控/对象存储结算单没有vo归属和服务单元
type DailyStatement struct {
	ID               string
	Date             time.Time
	ServiceID        string
	OriginalAmount   decimal.Decimal
	PayableAmount    decimal.Decimal
	TradeAmount      decimal.Decimal
	PaymentStatus    string
	PaymentHistoryID string
	UserID           string
	Username         string
	VoID             string
	VoName           string
	OwnerType        string
	CreatedAt        time.Time
}

// StatementKind 结算单资源种类
type StatementKind string

const (
	StatementKindServer  StatementKind = "server"
	StatementKindDisk    StatementKind = "disk"
	StatementKindStorage StatementKind = "storage"
	StatementKindWebsite StatementKind = "website"
)

// StatementFilter 结算单查询过滤条件
type StatementFilter struct {
	UserID        string
	VoID          string
	ServiceID     string
	PaymentStatus string
	DateStart     *time.Time
	DateEnd       *time.Time
	Page          int
	PageSize      int
}

// StatementRepo 日结算单仓库接口，按资源种类分表存储
type StatementRepo interface {
	Create(ctx context.Context, kind StatementKind, s *DailyStatement) error
	Get(ctx context.Context, kind StatementKind, statementID string) (*DailyStatement, error)
	List(ctx context.Context, kind StatementKind, filter *StatementFilter) ([]*DailyStatement, int64, error)
	// ListUnpaid 指定日期之前(含)所有未支付的结算单
	ListUnpaid(ctx context.Context, kind StatementKind, date time.Time) ([]*DailyStatement, error)
	// SetPaid 结算单支付成功，回填实付金额和支付记录id
	SetPaid(ctx context.Context, kind StatementKind, statementID string, tradeAmount decimal.Decimal, paymentHistoryID string) error
}

// StatementUsecase 日结算单业务逻辑：按日汇总计量单、结算单扣费、读侧查询
type StatementUsecase struct {
	repo        StatementRepo
	serverRepo  MeteringServerRepo
	diskRepo    MeteringDiskRepo
	storageRepo MeteringStorageRepo
	websiteRepo MeteringWebsiteRepo
	balance     BalanceClient
	tm          Transaction
	payAppID    string
	log         *log.Helper
}

func NewStatementUsecase(
	repo StatementRepo,
	serverRepo MeteringServerRepo, diskRepo MeteringDiskRepo,
	storageRepo MeteringStorageRepo, websiteRepo MeteringWebsiteRepo,
	balance BalanceClient, tm Transaction, c *conf.Metering, logger log.Logger,
) *StatementUsecase {
	payAppID := ""
	if c != nil {
		payAppID = c.PayAppID
	}
	return &StatementUsecase{
		repo:        repo,
		serverRepo:  serverRepo,
		diskRepo:    diskRepo,
		storageRepo: storageRepo,
		websiteRepo: websiteRepo,
		balance:     balance,
		tm:          tm,
		payAppID:    payAppID,
		log:         log.NewHelper(logger),
	}
}

// statementGroupKey 汇总分组键，同归属人同服务单元的计量单汇成一张结算单
type statementGroupKey struct {
	OwnerType string
	UserID    string
	VoID      string
	ServiceID string
}

type statementGroup struct {
	Key         statementGroupKey
	Username    string
	VoName      string
	Original    decimal.Decimal
	Trade       decimal.Decimal
	MeteringIDs []string
}

func accumulateGroup(groups map[statementGroupKey]*statementGroup, key statementGroupKey,
	username, voName string, original, trade decimal.Decimal, meteringID string) {
	g, ok := groups[key]
	if !ok {
		g = &statementGroup{Key: key, Username: username, VoName: voName}
		groups[key] = g
	}
	g.Original = g.Original.Add(original)
	g.Trade = g.Trade.Add(trade)
	g.MeteringIDs = append(g.MeteringIDs, meteringID)
}

// createStatementsForGroups 在一个事务内为各分组创建结算单并回填计量单，
// attach把一批计量单id绑定到新建的结算单
func (uc *StatementUsecase) createStatementsForGroups(
	ctx context.Context, kind StatementKind, date time.Time,
	groups map[statementGroupKey]*statementGroup,
	attach func(ctx context.Context, statementID string, meteringIDs []string) error,
) (int, error) {
	if len(groups) == 0 {
		return 0, nil
	}

	created := 0
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		for _, g := range groups {
			s := &DailyStatement{
				ID:             shortID(),
				Date:           date,
				ServiceID:      g.Key.ServiceID,
				OriginalAmount: g.Original.Round(2),
				PayableAmount:  g.Trade.Round(2),
				TradeAmount:    decimal.Zero,
				PaymentStatus:  constants.PaymentStatusUnpaid,
				UserID:         g.Key.UserID,
				Username:       g.Username,
				VoID:           g.Key.VoID,
				VoName:         g.VoName,
				OwnerType:      g.Key.OwnerType,
			}
			if s.OwnerType == "" {
				s.OwnerType = constants.OwnerTypeUser
			}
			if err := uc.repo.Create(ctx, kind, s); err != nil {
				return err
			}
			if err := attach(ctx, s.ID, g.MeteringIDs); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, errors.ConvertToError(err)
	}
	return created, nil
}

// GenerateServerStatements 汇总指定日期的云主机计量单为日结算单
func (uc *StatementUsecase) GenerateServerStatements(ctx context.Context, date time.Time) (int, error) {
	meterings, err := uc.serverRepo.ListUnstatemented(ctx, date)
	if err != nil {
		return 0, errors.ConvertToError(err)
	}

	groups := make(map[statementGroupKey]*statementGroup)
	for _, m := range meterings {
		key := statementGroupKey{OwnerType: m.OwnerType, ServiceID: m.ServiceID}
		if m.OwnerType == constants.OwnerTypeVo {
			key.VoID = m.VoID
		} else {
			key.UserID = m.UserID
		}
		accumulateGroup(groups, key, m.Username, m.VoName, m.OriginalAmount, m.TradeAmount, m.ID)
	}

	n, err := uc.createStatementsForGroups(ctx, StatementKindServer, date, groups, uc.serverRepo.AttachStatement)
	if err != nil {
		uc.log.Errorf("Failed to generate server statements of %s: %v", date.Format("2006-01-02"), err)
		return 0, err
	}
	uc.log.Infof("Generated %d server statements of %s from %d meterings",
		n, date.Format("2006-01-02"), len(meterings))
	return n, nil
}

// GenerateDiskStatements 汇总指定日期的云硬盘计量单为日结算单
func (uc *StatementUsecase) GenerateDiskStatements(ctx context.Context, date time.Time) (int, error) {
	meterings, err := uc.diskRepo.ListUnstatemented(ctx, date)
	if err != nil {
		return 0, errors.ConvertToError(err)
	}

	groups := make(map[statementGroupKey]*statementGroup)
	for _, m := range meterings {
		key := statementGroupKey{OwnerType: m.OwnerType, ServiceID: m.ServiceID}
		if m.OwnerType == constants.OwnerTypeVo {
			key.VoID = m.VoID
		} else {
			key.UserID = m.UserID
		}
		accumulateGroup(groups, key, m.Username, m.VoName, m.OriginalAmount, m.TradeAmount, m.ID)
	}

	n, err := uc.createStatementsForGroups(ctx, StatementKindDisk, date, groups, uc.diskRepo.AttachStatement)
	if err != nil {
		uc.log.Errorf("Failed to generate disk statements of %s: %v", date.Format("2006-01-02"), err)
		return 0, err
	}
	uc.log.Infof("Generated %d disk statements of %s from %d meterings",
		n, date.Format("2006-01-02"), len(meterings))
	return n, nil
}

// GenerateStorageStatements 汇总指定日期的对象存储计量单为日结算单
func (uc *StatementUsecase) GenerateStorageStatements(ctx context.Context, date time.Time) (int, error) {
	meterings, err := uc.storageRepo.ListUnstatemented(ctx, date)
	if err != nil {
		return 0, errors.ConvertToError(err)
	}

	groups := make(map[statementGroupKey]*statementGroup)
	for _, m := range meterings {
		key := statementGroupKey{OwnerType: constants.OwnerTypeUser, UserID: m.UserID, ServiceID: m.ServiceID}
		accumulateGroup(groups, key, m.Username, "", m.OriginalAmount, m.TradeAmount, m.ID)
	}

	n, err := uc.createStatementsForGroups(ctx, StatementKindStorage, date, groups, uc.storageRepo.AttachStatement)
	if err != nil {
		uc.log.Errorf("Failed to generate storage statements of %s: %v", date.Format("2006-01-02"), err)
		return 0, err
	}
	uc.log.Infof("Generated %d storage statements of %s from %d meterings",
		n, date.Format("2006-01-02"), len(meterings))
	return n, nil
}

// GenerateWebsiteStatements 汇总指定日期的站点监控计量单为日结算单
func (uc *StatementUsecase) GenerateWebsiteStatements(ctx context.Context, date time.Time) (int, error) {
	meterings, err := uc.websiteRepo.ListUnstatemented(ctx, date)
	if err != nil {
		return 0, errors.ConvertToError(err)
	}

	groups := make(map[statementGroupKey]*statementGroup)
	for _, m := range meterings {
		key := statementGroupKey{OwnerType: constants.OwnerTypeUser, UserID: m.UserID}
		accumulateGroup(groups, key, m.Username, "", m.OriginalAmount, m.TradeAmount, m.ID)
	}

	n, err := uc.createStatementsForGroups(ctx, StatementKindWebsite, date, groups, uc.websiteRepo.AttachStatement)
	if err != nil {
		uc.log.Errorf("Failed to generate website statements of %s: %v", date.Format("2006-01-02"), err)
		return 0, err
	}
	uc.log.Infof("Generated %d website statements of %s from %d meterings",
		n, date.Format("2006-01-02"), len(meterings))
	return n, nil
}

// GenerateAllStatements 汇总指定日期四种资源的计量单
func (uc *StatementUsecase) GenerateAllStatements(ctx context.Context, date time.Time) error {
	var firstErr error
	for _, gen := range []func(context.Context, time.Time) (int, error){
		uc.GenerateServerStatements,
		uc.GenerateDiskStatements,
		uc.GenerateStorageStatements,
		uc.GenerateWebsiteStatements,
	} {
		if _, err := gen(ctx, date); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// statementSubjects 扣费时的交易主题
var statementSubjects = map[StatementKind]string{
	StatementKindServer:  "云主机按量计费",
	StatementKindDisk:    "云硬盘按量计费",
	StatementKindStorage: "对象存储按量计费",
	StatementKindWebsite: "站点监控按量计费",
}

// PayStatements 对指定日期之前(含)所有未支付的结算单逐张扣费。
// 余额不足只跳过该张结算单留待下次扣费，不中断整个扣费流程，
// 返回(成功张数, 余额不足张数)
func (uc *StatementUsecase) PayStatements(ctx context.Context, kind StatementKind, date time.Time) (paid, lacking int, err error) {
	statements, err := uc.repo.ListUnpaid(ctx, kind, date)
	if err != nil {
		return 0, 0, errors.ConvertToError(err)
	}

	for _, s := range statements {
		if s.PayableAmount.LessThanOrEqual(decimal.Zero) {
			// 零元结算单直接置为已支付
			if err := uc.repo.SetPaid(ctx, kind, s.ID, decimal.Zero, ""); err != nil {
				uc.log.Errorf("Failed to set zero statement %s paid: %v", s.ID, err)
				continue
			}
			paid++
			continue
		}

		ownerID := s.UserID
		if s.OwnerType == constants.OwnerTypeVo {
			ownerID = s.VoID
		}
		result, err := uc.balance.PayDailyStatement(ctx, &PayStatementRequest{
			AppID:        uc.payAppID,
			AppServiceID: s.ServiceID,
			StatementID:  s.ID,
			Subject:      statementSubjects[kind],
			Remark:       s.Date.Format("2006-01-02"),
			Amount:       s.PayableAmount,
			OwnerID:      ownerID,
			OwnerType:    s.OwnerType,
		})
		if err != nil {
			if errors.IsBalanceNotEnough(err) {
				lacking++
				uc.log.Warnf("Balance not enough for statement %s, owner %s", s.ID, ownerID)
				continue
			}
			uc.log.Errorf("Failed to pay statement %s: %v", s.ID, err)
			continue
		}

		if err := uc.repo.SetPaid(ctx, kind, s.ID, s.PayableAmount, result.PaymentHistoryID); err != nil {
			uc.log.Errorf("Failed to set statement %s paid: %v", s.ID, err)
			continue
		}
		paid++
	}

	uc.log.Infof("Paid %s statements before %s: total=%d, paid=%d, lacking=%d",
		kind, date.Format("2006-01-02"), len(statements), paid, lacking)
	return paid, lacking, nil
}

// PayAllStatements 对四种资源的未支付结算单扣费
func (uc *StatementUsecase) PayAllStatements(ctx context.Context, date time.Time) error {
	var firstErr error
	for _, kind := range []StatementKind{
		StatementKindServer, StatementKindDisk, StatementKindStorage, StatementKindWebsite,
	} {
		if _, _, err := uc.PayStatements(ctx, kind, date); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetStatement 查询结算单详情，普通用户只能查自己或所在vo组的
func (uc *StatementUsecase) GetStatement(
	ctx context.Context, kind StatementKind, statementID string, r auth.Requester,
) (*DailyStatement, error) {
	s, err := uc.repo.Get(ctx, kind, statementID)
	if err != nil {
		return nil, errors.ConvertToError(err)
	}
	if s == nil {
		return nil, errors.NotFound("结算单不存在")
	}
	if r.IsFederalAdmin() {
		return s, nil
	}
	if s.OwnerType == constants.OwnerTypeUser && s.UserID != r.UserID {
		return nil, errors.AccessDenied("您没有此结算单访问权限")
	}
	return s, nil
}

// ListStatements 查询结算单列表
func (uc *StatementUsecase) ListStatements(
	ctx context.Context, kind StatementKind, filter *StatementFilter, r auth.Requester,
) ([]*DailyStatement, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = constants.DefaultPageSize
	}
	if filter.PageSize > constants.MaxPageSize {
		filter.PageSize = constants.MaxPageSize
	}
	if !r.IsFederalAdmin() && filter.VoID == "" {
		filter.UserID = r.UserID
	}
	return uc.repo.List(ctx, kind, filter)
}
