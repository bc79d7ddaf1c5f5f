package biz

import (
	"context"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/conf"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// fakeMeteringServerRepo 内存云主机计量单仓库
type fakeMeteringServerRepo struct {
	meterings []*MeteringServer
	attached  map[string][]string // statement_id -> metering_ids
}

func (r *fakeMeteringServerRepo) Create(ctx context.Context, m *MeteringServer) error {
	r.meterings = append(r.meterings, m)
	return nil
}

func (r *fakeMeteringServerRepo) List(ctx context.Context, filter *MeteringFilter) ([]*MeteringServer, int64, error) {
	return r.meterings, int64(len(r.meterings)), nil
}

func (r *fakeMeteringServerRepo) Aggregate(ctx context.Context, by AggregateBy, filter *MeteringFilter) ([]*MeteringAggregate, int64, error) {
	return nil, 0, nil
}

func (r *fakeMeteringServerRepo) ListUnstatemented(ctx context.Context, date time.Time) ([]*MeteringServer, error) {
	var out []*MeteringServer
	for _, m := range r.meterings {
		if m.Date.Equal(date) && m.PayType == constants.PayTypePostpaid && m.DailyStatementID == "" {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMeteringServerRepo) AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error {
	if r.attached == nil {
		r.attached = make(map[string][]string)
	}
	r.attached[statementID] = append(r.attached[statementID], meteringIDs...)
	for _, m := range r.meterings {
		for _, id := range meteringIDs {
			if m.ID == id {
				m.DailyStatementID = statementID
			}
		}
	}
	return nil
}

func (r *fakeMeteringServerRepo) ListByStatementID(ctx context.Context, statementID string) ([]*MeteringServer, error) {
	var out []*MeteringServer
	for _, m := range r.meterings {
		if m.DailyStatementID == statementID {
			out = append(out, m)
		}
	}
	return out, nil
}

// 其余三种计量单仓库在汇总测试中不需要数据，给空实现

type emptyMeteringDiskRepo struct{}

func (emptyMeteringDiskRepo) Create(ctx context.Context, m *MeteringDisk) error { return nil }
func (emptyMeteringDiskRepo) List(ctx context.Context, filter *MeteringFilter) ([]*MeteringDisk, int64, error) {
	return nil, 0, nil
}
func (emptyMeteringDiskRepo) Aggregate(ctx context.Context, by AggregateBy, filter *MeteringFilter) ([]*MeteringAggregate, int64, error) {
	return nil, 0, nil
}
func (emptyMeteringDiskRepo) ListUnstatemented(ctx context.Context, date time.Time) ([]*MeteringDisk, error) {
	return nil, nil
}
func (emptyMeteringDiskRepo) AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error {
	return nil
}
func (emptyMeteringDiskRepo) ListByStatementID(ctx context.Context, statementID string) ([]*MeteringDisk, error) {
	return nil, nil
}

type emptyMeteringStorageRepo struct{}

func (emptyMeteringStorageRepo) Create(ctx context.Context, m *MeteringObjectStorage) error {
	return nil
}
func (emptyMeteringStorageRepo) List(ctx context.Context, filter *MeteringFilter) ([]*MeteringObjectStorage, int64, error) {
	return nil, 0, nil
}
func (emptyMeteringStorageRepo) ListUnstatemented(ctx context.Context, date time.Time) ([]*MeteringObjectStorage, error) {
	return nil, nil
}
func (emptyMeteringStorageRepo) AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error {
	return nil
}
func (emptyMeteringStorageRepo) ListByStatementID(ctx context.Context, statementID string) ([]*MeteringObjectStorage, error) {
	return nil, nil
}

type emptyMeteringWebsiteRepo struct{}

func (emptyMeteringWebsiteRepo) Create(ctx context.Context, m *MeteringMonitorWebsite) error {
	return nil
}
func (emptyMeteringWebsiteRepo) List(ctx context.Context, filter *MeteringFilter) ([]*MeteringMonitorWebsite, int64, error) {
	return nil, 0, nil
}
func (emptyMeteringWebsiteRepo) ListUnstatemented(ctx context.Context, date time.Time) ([]*MeteringMonitorWebsite, error) {
	return nil, nil
}
func (emptyMeteringWebsiteRepo) AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error {
	return nil
}
func (emptyMeteringWebsiteRepo) ListByStatementID(ctx context.Context, statementID string) ([]*MeteringMonitorWebsite, error) {
	return nil, nil
}

// fakeStatementRepo 内存日结算单仓库
type fakeStatementRepo struct {
	statements map[string]*DailyStatement
}

func newFakeStatementRepo() *fakeStatementRepo {
	return &fakeStatementRepo{statements: make(map[string]*DailyStatement)}
}

func (r *fakeStatementRepo) Create(ctx context.Context, kind StatementKind, s *DailyStatement) error {
	cp := *s
	r.statements[s.ID] = &cp
	return nil
}

func (r *fakeStatementRepo) Get(ctx context.Context, kind StatementKind, statementID string) (*DailyStatement, error) {
	s, ok := r.statements[statementID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStatementRepo) List(ctx context.Context, kind StatementKind, filter *StatementFilter) ([]*DailyStatement, int64, error) {
	var out []*DailyStatement
	for _, s := range r.statements {
		cp := *s
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *fakeStatementRepo) ListUnpaid(ctx context.Context, kind StatementKind, date time.Time) ([]*DailyStatement, error) {
	var out []*DailyStatement
	for _, s := range r.statements {
		if s.PaymentStatus == constants.PaymentStatusUnpaid && !s.Date.After(date) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeStatementRepo) SetPaid(ctx context.Context, kind StatementKind, statementID string, tradeAmount decimal.Decimal, paymentHistoryID string) error {
	s, ok := r.statements[statementID]
	if !ok {
		return fmt.Errorf("statement %s not found", statementID)
	}
	s.PaymentStatus = constants.PaymentStatusPaid
	s.TradeAmount = tradeAmount
	s.PaymentHistoryID = paymentHistoryID
	return nil
}

// fakePayBalance 可按归属人配置余额不足的余额客户端
type fakePayBalance struct {
	lackingOwners map[string]bool
	payCalls      []*PayStatementRequest
}

func (b *fakePayBalance) HasEnoughBalanceUser(ctx context.Context, userID string, money decimal.Decimal, withCoupons bool, appServiceID string) (bool, error) {
	return true, nil
}

func (b *fakePayBalance) HasEnoughBalanceVo(ctx context.Context, voID string, money decimal.Decimal, withCoupons bool, appServiceID string) (bool, error) {
	return true, nil
}

func (b *fakePayBalance) PayDailyStatement(ctx context.Context, req *PayStatementRequest) (*PayStatementResult, error) {
	b.payCalls = append(b.payCalls, req)
	if b.lackingOwners[req.OwnerID] {
		return nil, errors.BalanceNotEnough("")
	}
	return &PayStatementResult{
		PaymentHistoryID: "ph-" + req.StatementID,
		BalanceAmount:    req.Amount,
	}, nil
}

func newTestStatementUsecase(
	serverRepo MeteringServerRepo, stRepo StatementRepo, balance BalanceClient,
) *StatementUsecase {
	return NewStatementUsecase(
		stRepo, serverRepo, emptyMeteringDiskRepo{}, emptyMeteringStorageRepo{}, emptyMeteringWebsiteRepo{},
		balance, fakeTx{}, &conf.Metering{PayAppID: "app1"}, log.NewStdLogger(io.Discard),
	)
}

func serverMetering(id, userID, voID, serviceID string, amount string) *MeteringServer {
	owner := constants.OwnerTypeUser
	if voID != "" {
		owner = constants.OwnerTypeVo
	}
	return &MeteringServer{
		ID:             id,
		ServerID:       "srv-" + id,
		Date:           time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		ServiceID:      serviceID,
		OriginalAmount: decimal.RequireFromString(amount),
		TradeAmount:    decimal.RequireFromString(amount),
		PayType:        constants.PayTypePostpaid,
		UserID:         userID,
		VoID:           voID,
		OwnerType:      owner,
	}
}

func TestGenerateServerStatementsGrouping(t *testing.T) {
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	serverRepo := &fakeMeteringServerRepo{meterings: []*MeteringServer{
		serverMetering("m1", "u1", "", "s1", "10.50"),
		serverMetering("m2", "u1", "", "s1", "20.25"),
		serverMetering("m3", "", "vo1", "s1", "5.00"),
	}}
	// 预付费和已汇总的计量单不参与本次汇总
	prepaid := serverMetering("m4", "u1", "", "s1", "99")
	prepaid.PayType = constants.PayTypePrepaid
	statemented := serverMetering("m5", "u1", "", "s1", "88")
	statemented.DailyStatementID = "old-statement"
	serverRepo.meterings = append(serverRepo.meterings, prepaid, statemented)

	stRepo := newFakeStatementRepo()
	uc := newTestStatementUsecase(serverRepo, stRepo, &fakePayBalance{})

	n, err := uc.GenerateServerStatements(context.Background(), date)
	if err != nil {
		t.Fatalf("GenerateServerStatements: %v", err)
	}
	if n != 2 {
		t.Fatalf("created %d statements, want 2 (one per owner)", n)
	}

	var userStmt, voStmt *DailyStatement
	for _, s := range stRepo.statements {
		switch s.OwnerType {
		case constants.OwnerTypeUser:
			userStmt = s
		case constants.OwnerTypeVo:
			voStmt = s
		}
	}
	if userStmt == nil || voStmt == nil {
		t.Fatal("expected one user statement and one vo statement")
	}

	if got := userStmt.PayableAmount.StringFixed(2); got != "30.75" {
		t.Errorf("user statement payable = %s, want 30.75", got)
	}
	if userStmt.UserID != "u1" || userStmt.ServiceID != "s1" {
		t.Errorf("user statement owner = %s/%s", userStmt.UserID, userStmt.ServiceID)
	}
	if got := voStmt.PayableAmount.StringFixed(2); got != "5.00" {
		t.Errorf("vo statement payable = %s, want 5.00", got)
	}
	if voStmt.VoID != "vo1" {
		t.Errorf("vo statement vo_id = %s, want vo1", voStmt.VoID)
	}
	if userStmt.PaymentStatus != constants.PaymentStatusUnpaid {
		t.Errorf("new statement payment status = %s, want unpaid", userStmt.PaymentStatus)
	}

	// 计量单回填结算单id
	ids := serverRepo.attached[userStmt.ID]
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "m1" || ids[1] != "m2" {
		t.Errorf("user statement metering ids = %v, want [m1 m2]", ids)
	}
	if got := serverRepo.attached[voStmt.ID]; len(got) != 1 || got[0] != "m3" {
		t.Errorf("vo statement metering ids = %v, want [m3]", got)
	}

	// 再次汇总同一天没有新的未汇总计量单
	n, err = uc.GenerateServerStatements(context.Background(), date)
	if err != nil {
		t.Fatalf("second GenerateServerStatements: %v", err)
	}
	if n != 0 {
		t.Errorf("second rollup created %d statements, want 0", n)
	}
}

func TestPayStatements(t *testing.T) {
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	stRepo := newFakeStatementRepo()
	stRepo.statements["st1"] = &DailyStatement{
		ID: "st1", Date: date, ServiceID: "s1",
		PayableAmount: decimal.RequireFromString("30.75"),
		PaymentStatus: constants.PaymentStatusUnpaid,
		UserID:        "u1", OwnerType: constants.OwnerTypeUser,
	}
	stRepo.statements["st2"] = &DailyStatement{
		ID: "st2", Date: date, ServiceID: "s1",
		PayableAmount: decimal.RequireFromString("5.00"),
		PaymentStatus: constants.PaymentStatusUnpaid,
		VoID:          "vo1", OwnerType: constants.OwnerTypeVo,
	}
	// 零元结算单直接置为已支付，不调用扣费
	stRepo.statements["st3"] = &DailyStatement{
		ID: "st3", Date: date, ServiceID: "s1",
		PayableAmount: decimal.Zero,
		PaymentStatus: constants.PaymentStatusUnpaid,
		UserID:        "u2", OwnerType: constants.OwnerTypeUser,
	}

	balance := &fakePayBalance{lackingOwners: map[string]bool{"vo1": true}}
	uc := newTestStatementUsecase(&fakeMeteringServerRepo{}, stRepo, balance)

	paid, lacking, err := uc.PayStatements(context.Background(), StatementKindServer, date)
	if err != nil {
		t.Fatalf("PayStatements: %v", err)
	}
	if paid != 2 || lacking != 1 {
		t.Fatalf("paid = %d, lacking = %d, want 2/1", paid, lacking)
	}

	// 零元结算单不走扣费接口
	if len(balance.payCalls) != 2 {
		t.Fatalf("pay calls = %d, want 2", len(balance.payCalls))
	}
	for _, req := range balance.payCalls {
		if req.AppID != "app1" || req.Subject != "云主机按量计费" {
			t.Errorf("pay request app/subject = %s/%s", req.AppID, req.Subject)
		}
	}

	if s := stRepo.statements["st1"]; s.PaymentStatus != constants.PaymentStatusPaid ||
		s.TradeAmount.StringFixed(2) != "30.75" || s.PaymentHistoryID != "ph-st1" {
		t.Errorf("st1 after pay = %s/%s/%s", s.PaymentStatus, s.TradeAmount, s.PaymentHistoryID)
	}
	// 余额不足的留待下次扣费
	if s := stRepo.statements["st2"]; s.PaymentStatus != constants.PaymentStatusUnpaid {
		t.Errorf("st2 should stay unpaid, got %s", s.PaymentStatus)
	}
	if s := stRepo.statements["st3"]; s.PaymentStatus != constants.PaymentStatusPaid || !s.TradeAmount.IsZero() {
		t.Errorf("st3 should be auto paid with zero amount, got %s/%s", s.PaymentStatus, s.TradeAmount)
	}

	// 已支付的不再重复扣费
	paid, lacking, err = uc.PayStatements(context.Background(), StatementKindServer, date)
	if err != nil {
		t.Fatalf("second PayStatements: %v", err)
	}
	if paid != 0 || lacking != 1 {
		t.Errorf("second run paid = %d, lacking = %d, want 0/1", paid, lacking)
	}
}

func TestGetStatementPermission(t *testing.T) {
	stRepo := newFakeStatementRepo()
	stRepo.statements["st1"] = &DailyStatement{
		ID: "st1", UserID: "u1", OwnerType: constants.OwnerTypeUser,
		PaymentStatus: constants.PaymentStatusUnpaid,
	}
	uc := newTestStatementUsecase(&fakeMeteringServerRepo{}, stRepo, &fakePayBalance{})

	if _, err := uc.GetStatement(context.Background(), StatementKindServer, "st1", requesterU1); err != nil {
		t.Errorf("owner should access statement: %v", err)
	}

	other := requesterU1
	other.UserID = "u2"
	if _, err := uc.GetStatement(context.Background(), StatementKindServer, "st1", other); !errors.IsAccessDenied(err) {
		t.Errorf("expected AccessDenied, got %v", err)
	}

	if _, err := uc.GetStatement(context.Background(), StatementKindServer, "missing", requesterU1); !errors.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
