package biz

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// fakeOrderRepo 内存订单仓库，按列名更新的语义与真实仓库一致
type fakeOrderRepo struct {
	orders    map[string]*Order
	resources map[string]*Resource
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:    make(map[string]*Order),
		resources: make(map[string]*Resource),
	}
}

func (r *fakeOrderRepo) CreateOrderWithResources(ctx context.Context, order *Order, resources []*Resource) error {
	if _, ok := r.orders[order.ID]; ok {
		return fmt.Errorf("duplicate order id %s", order.ID)
	}
	o := *order
	r.orders[order.ID] = &o
	for _, res := range resources {
		cp := *res
		r.resources[res.ID] = &cp
	}
	return nil
}

func (r *fakeOrderRepo) GetOrder(ctx context.Context, orderID string, forUpdate bool) (*Order, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetOrderResources(ctx context.Context, orderID string, forUpdate bool) ([]*Resource, error) {
	var out []*Resource
	for _, res := range r.resources {
		if res.OrderID == orderID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) GetResource(ctx context.Context, resourceID string, forUpdate bool) (*Resource, error) {
	res, ok := r.resources[resourceID]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (r *fakeOrderRepo) UpdateOrder(ctx context.Context, orderID string, fields map[string]interface{}) error {
	o, ok := r.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	for k, v := range fields {
		switch k {
		case "status":
			o.Status = v.(string)
		case "trading_status":
			o.TradingStatus = v.(string)
		case "order_action":
			o.OrderAction = v.(string)
		case "deleted":
			o.Deleted = v.(bool)
		case "completion_time":
			t := v.(time.Time)
			o.CompletionTime = &t
		case "payment_time":
			t := v.(time.Time)
			o.PaymentTime = &t
		case "start_time":
			t := v.(time.Time)
			o.StartTime = &t
		case "end_time":
			t := v.(time.Time)
			o.EndTime = &t
		case "pay_amount":
			o.PayAmount = v.(decimal.Decimal)
		case "balance_amount":
			o.BalanceAmount = v.(decimal.Decimal)
		case "coupon_amount":
			o.CouponAmount = v.(decimal.Decimal)
		default:
			return fmt.Errorf("unexpected order field %s", k)
		}
	}
	return nil
}

func (r *fakeOrderRepo) UpdateResource(ctx context.Context, resourceID string, fields map[string]interface{}) error {
	res, ok := r.resources[resourceID]
	if !ok {
		return fmt.Errorf("resource %s not found", resourceID)
	}
	for k, v := range fields {
		switch k {
		case "instance_status":
			res.InstanceStatus = v.(string)
		case "instance_id":
			res.InstanceID = v.(string)
		case "desc":
			res.Desc = v.(string)
		case "delivered_time":
			t := v.(time.Time)
			res.DeliveredTime = &t
		case "instance_delete_time":
			t := v.(time.Time)
			res.InstanceDeleteTime = &t
		default:
			return fmt.Errorf("unexpected resource field %s", k)
		}
	}
	return nil
}

func (r *fakeOrderRepo) ListOrders(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error) {
	var out []*Order
	for _, o := range r.orders {
		if o.Deleted {
			continue
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) SetResourceInstanceDeleted(ctx context.Context, resourceType, instanceID string) error {
	now := time.Now().UTC()
	for _, res := range r.resources {
		if res.ResourceType == resourceType && res.InstanceID == instanceID && res.InstanceDeleteTime == nil {
			res.InstanceDeleteTime = &now
		}
	}
	return nil
}

// fakeTx 直通事务
type fakeTx struct{}

func (fakeTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeBalance 余额客户端
type fakeBalance struct {
	enough bool
}

func (b *fakeBalance) HasEnoughBalanceUser(ctx context.Context, userID string, money decimal.Decimal, withCoupons bool, appServiceID string) (bool, error) {
	return b.enough, nil
}

func (b *fakeBalance) HasEnoughBalanceVo(ctx context.Context, voID string, money decimal.Decimal, withCoupons bool, appServiceID string) (bool, error) {
	return b.enough, nil
}

func (b *fakeBalance) PayDailyStatement(ctx context.Context, req *PayStatementRequest) (*PayStatementResult, error) {
	return &PayStatementResult{PaymentHistoryID: "ph1"}, nil
}

// fakeDeliverer 资源交付客户端
type fakeDeliverer struct {
	result *DeliverResult
	err    error
	calls  int
}

func (d *fakeDeliverer) Deliver(ctx context.Context, order *Order, resource *Resource) (*DeliverResult, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func newTestOrderUsecase(repo *fakeOrderRepo, balance *fakeBalance, deliverer *fakeDeliverer) *OrderUsecase {
	if balance == nil {
		balance = &fakeBalance{enough: true}
	}
	if deliverer == nil {
		deliverer = &fakeDeliverer{}
	}
	return NewOrderUsecase(repo, testPriceUsecase(), balance, deliverer, fakeTx{}, log.NewStdLogger(io.Discard))
}

func serverCreateParams(number int) *CreateOrderParams {
	return &CreateOrderParams{
		OrderType:    constants.OrderTypeNew,
		ServiceID:    "svc1",
		AppServiceID: "app-svc1",
		ServiceName:  "单元1",
		ResourceType: constants.ResourceTypeVM,
		Config: ServerConfig{
			VMCPU:           2,
			VMRamMiB:        2048,
			VMSystemDiskGiB: 100,
			VMPublicIP:      true,
		},
		Period:     1,
		PeriodUnit: constants.PeriodUnitMonth,
		PayType:    constants.PayTypePrepaid,
		UserID:     "u1",
		Username:   "tom",
		OwnerType:  constants.OwnerTypeUser,
		Number:     number,
	}
}

func TestCreateOrderPrepaidMultiInstance(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)

	order, resources, err := uc.CreateOrder(context.Background(), serverCreateParams(3))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Number != 3 || len(resources) != 3 {
		t.Fatalf("number = %d, resources = %d, want 3", order.Number, len(resources))
	}

	// 应付金额 = 单实例应付 × 数量
	if got := order.TotalAmount.StringFixed(2); got != "123120.00" {
		t.Errorf("total amount = %s, want 123120.00", got)
	}
	if got := order.PayableAmount.StringFixed(2); got != "81259.20" {
		t.Errorf("payable amount = %s, want 81259.20", got)
	}

	// 预生成的实例id互不相同，云主机实例带-i后缀
	seen := make(map[string]bool)
	for _, res := range resources {
		if !strings.HasSuffix(res.InstanceID, "-i") {
			t.Errorf("instance id %s missing -i suffix", res.InstanceID)
		}
		if seen[res.InstanceID] {
			t.Errorf("duplicate instance id %s", res.InstanceID)
		}
		seen[res.InstanceID] = true
		if res.InstanceStatus != constants.InstanceStatusWait {
			t.Errorf("instance status = %s, want wait", res.InstanceStatus)
		}
	}

	if order.Status != constants.OrderStatusUnpaid || order.TradingStatus != constants.TradingStatusOpening {
		t.Errorf("new order status = %s/%s, want unpaid/opening", order.Status, order.TradingStatus)
	}
}

func TestCreateOrderPostpaidBalanceCheck(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, &fakeBalance{enough: false}, nil)

	p := serverCreateParams(1)
	p.PayType = constants.PayTypePostpaid
	p.Period = 0

	_, _, err := uc.CreateOrder(context.Background(), p)
	if err == nil {
		t.Fatal("expected balance error")
	}
	if !errors.IsBalanceNotEnough(err) {
		t.Errorf("expected BalanceNotEnough, got %v", err)
	}
	if len(repo.orders) != 0 {
		t.Errorf("no order should be created, got %d", len(repo.orders))
	}
}

func TestCreateSnapshotOrderNumberMustBeOne(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)

	p := serverCreateParams(2)
	p.ResourceType = constants.ResourceTypeVMSnapshot
	p.Config = ServerSnapshotConfig{ServerID: "srv1", SystemDiskSizeGiB: 100, SnapshotName: "snap1"}

	_, _, err := uc.CreateOrder(context.Background(), p)
	if err == nil {
		t.Fatal("expected error for snapshot number 2")
	}
	if !strings.Contains(err.Error(), "快照订购数量必须为1") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestCreateRenewOrderPeriodTimeExclusion(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)

	// 同时指定时长和时段
	_, _, err := uc.CreateRenewOrder(context.Background(), &RenewOrderParams{
		ServiceID:    "svc1",
		ResourceType: constants.ResourceTypeVM,
		InstanceID:   "srv1-i",
		Config:       ServerConfig{VMCPU: 2, VMRamMiB: 2048, VMSystemDiskGiB: 100},
		Period:       3,
		PeriodUnit:   constants.PeriodUnitMonth,
		StartTime:    &start,
		EndTime:      &end,
		UserID:       "u1",
		Username:     "tom",
		OwnerType:    constants.OwnerTypeUser,
	})
	if err == nil {
		t.Fatal("expected error when both period and time window given")
	}
	if !strings.Contains(err.Error(), "不能同时指定时段起止时间和时长") {
		t.Errorf("unexpected error message: %v", err)
	}

	// 时段终止早于起始
	_, _, err = uc.CreateRenewOrder(context.Background(), &RenewOrderParams{
		ServiceID:    "svc1",
		ResourceType: constants.ResourceTypeVM,
		InstanceID:   "srv1-i",
		Config:       ServerConfig{VMCPU: 2, VMRamMiB: 2048, VMSystemDiskGiB: 100},
		StartTime:    &end,
		EndTime:      &start,
		UserID:       "u1",
		Username:     "tom",
		OwnerType:    constants.OwnerTypeUser,
	})
	if err == nil {
		t.Fatal("expected error when end before start")
	}
}

func TestCreateRenewOrderPeriodTooLong(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)

	_, _, err := uc.CreateRenewOrder(context.Background(), &RenewOrderParams{
		ServiceID:    "svc1",
		ResourceType: constants.ResourceTypeVM,
		InstanceID:   "srv1-i",
		Config:       ServerConfig{VMCPU: 2, VMRamMiB: 2048, VMSystemDiskGiB: 100},
		Period:       25,
		PeriodUnit:   constants.PeriodUnitMonth,
		UserID:       "u1",
		Username:     "tom",
		OwnerType:    constants.OwnerTypeUser,
	})
	if err == nil {
		t.Fatal("expected error for 25 month renewal")
	}
	if kerrors.Reason(err) != errors.ReasonPeriodTooLong {
		t.Errorf("reason = %s, want %s", kerrors.Reason(err), errors.ReasonPeriodTooLong)
	}
}

func seedOrder(repo *fakeOrderRepo, status, tradingStatus string) *Order {
	o := &Order{
		ID:            "order1",
		OrderType:     constants.OrderTypeNew,
		Status:        status,
		ResourceType:  constants.ResourceTypeVM,
		PayType:       constants.PayTypePrepaid,
		UserID:        "u1",
		Username:      "tom",
		OwnerType:     constants.OwnerTypeUser,
		TradingStatus: tradingStatus,
		OrderAction:   constants.OrderActionNone,
		Number:        1,
		CreatedAt:     time.Now().UTC(),
	}
	repo.orders[o.ID] = o
	repo.resources["res1"] = &Resource{
		ID:             "res1",
		OrderID:        o.ID,
		ResourceType:   constants.ResourceTypeVM,
		InstanceID:     "abc-i",
		InstanceStatus: constants.InstanceStatusWait,
		CreatedAt:      time.Now().UTC(),
	}
	return o
}

var requesterU1 = auth.Requester{UserID: "u1", Username: "tom", Role: auth.RoleUser}

func TestCancelOrderChecks(t *testing.T) {
	testCases := []struct {
		name          string
		status        string
		tradingStatus string
		check         func(err error) bool
	}{
		{"completed", constants.OrderStatusPaid, constants.TradingStatusCompleted, errors.IsOrderTradingCompleted},
		{"closed", constants.OrderStatusCancelled, constants.TradingStatusClosed, errors.IsOrderTradingClosed},
		{"paid", constants.OrderStatusPaid, constants.TradingStatusOpening, errors.IsOrderPaid},
	}
	for _, tc := range testCases {
		repo := newFakeOrderRepo()
		uc := newTestOrderUsecase(repo, nil, nil)
		seedOrder(repo, tc.status, tc.tradingStatus)

		_, err := uc.CancelOrder(context.Background(), "order1", requesterU1)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.check(err) {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestCancelOrderSuccess(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	seedOrder(repo, constants.OrderStatusUnpaid, constants.TradingStatusOpening)

	order, err := uc.CancelOrder(context.Background(), "order1", requesterU1)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if order.Status != constants.OrderStatusCancelled || order.TradingStatus != constants.TradingStatusClosed {
		t.Errorf("cancelled order state = %s/%s, want cancelled/closed", order.Status, order.TradingStatus)
	}
}

func TestCancelDeleteOrderWhileDelivering(t *testing.T) {
	// 正在交付资源的订单不允许取消
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	o := seedOrder(repo, constants.OrderStatusUnpaid, constants.TradingStatusOpening)
	repo.orders[o.ID].OrderAction = constants.OrderActionDelivering

	_, err := uc.CancelOrder(context.Background(), "order1", requesterU1)
	if err == nil {
		t.Fatal("expected error cancelling delivering order")
	}
	if !errors.IsTryAgainLater(err) {
		t.Errorf("expected TryAgainLater, got %v", err)
	}
	if repo.orders["order1"].Status != constants.OrderStatusUnpaid {
		t.Error("order status should stay unpaid")
	}

	// 删除同样被拒绝
	repo2 := newFakeOrderRepo()
	uc2 := newTestOrderUsecase(repo2, nil, nil)
	o2 := seedOrder(repo2, constants.OrderStatusCancelled, constants.TradingStatusClosed)
	repo2.orders[o2.ID].OrderAction = constants.OrderActionDelivering

	err = uc2.DeleteOrder(context.Background(), "order1", requesterU1)
	if err == nil {
		t.Fatal("expected error deleting delivering order")
	}
	if !errors.IsTryAgainLater(err) {
		t.Errorf("expected TryAgainLater, got %v", err)
	}
	if repo2.orders["order1"].Deleted {
		t.Error("order should not be deleted")
	}
}

func TestDeleteOrderLifecycle(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	seedOrder(repo, constants.OrderStatusUnpaid, constants.TradingStatusOpening)

	// 未支付订单需要先取消
	err := uc.DeleteOrder(context.Background(), "order1", requesterU1)
	if err == nil {
		t.Fatal("expected error deleting unpaid order")
	}
	if !strings.Contains(err.Error(), "请先取消订单") {
		t.Errorf("unexpected error message: %v", err)
	}

	if _, err := uc.CancelOrder(context.Background(), "order1", requesterU1); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if err := uc.DeleteOrder(context.Background(), "order1", requesterU1); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if !repo.orders["order1"].Deleted {
		t.Error("order should be soft deleted")
	}

	// 重复删除幂等
	if err := uc.DeleteOrder(context.Background(), "order1", requesterU1); err != nil {
		t.Fatalf("repeated DeleteOrder: %v", err)
	}
}

func TestSetOrderResourceDeliverOK(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	seedOrder(repo, constants.OrderStatusPaid, constants.TradingStatusOpening)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	due := start.AddDate(0, 1, 0)
	result := &DeliverResult{InstanceID: "real-srv-1", StartTime: start, DueTime: due}

	if err := uc.SetOrderResourceDeliverOK(context.Background(), "order1", "res1", result); err != nil {
		t.Fatalf("SetOrderResourceDeliverOK: %v", err)
	}

	o := repo.orders["order1"]
	res := repo.resources["res1"]
	if o.TradingStatus != constants.TradingStatusCompleted {
		t.Errorf("trading status = %s, want completed", o.TradingStatus)
	}
	if o.StartTime == nil || !o.StartTime.Equal(start) || o.EndTime == nil || !o.EndTime.Equal(due) {
		t.Error("prepaid order start/end time should be set from deliver result")
	}
	if res.InstanceStatus != constants.InstanceStatusSuccess || res.InstanceID != "real-srv-1" {
		t.Errorf("resource state = %s/%s", res.InstanceStatus, res.InstanceID)
	}

	// 已完成的订单不允许再次修改，状态保持稳定
	err := uc.SetOrderResourceDeliverOK(context.Background(), "order1", "res1", result)
	if err == nil {
		t.Fatal("expected error on repeated deliver-ok")
	}
	if !strings.Contains(err.Error(), "不允许修改") {
		t.Errorf("unexpected error message: %v", err)
	}
	if repo.orders["order1"].TradingStatus != constants.TradingStatusCompleted {
		t.Error("order state should stay completed")
	}
}

func TestSetOrderResourceDeliverOKPayTypeTimes(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	due := start.AddDate(0, 1, 0)
	result := &DeliverResult{InstanceID: "real-srv-1", StartTime: start, DueTime: due}

	// 按量付费订单的起止时间由计量决定，交付时不写入
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	o := seedOrder(repo, constants.OrderStatusPaid, constants.TradingStatusOpening)
	repo.orders[o.ID].PayType = constants.PayTypePostpaid

	if err := uc.SetOrderResourceDeliverOK(context.Background(), "order1", "res1", result); err != nil {
		t.Fatalf("SetOrderResourceDeliverOK: %v", err)
	}
	if repo.orders["order1"].StartTime != nil || repo.orders["order1"].EndTime != nil {
		t.Error("postpaid order start/end time should not be set on delivery")
	}

	// 资源券支付与预付费一样写入起止时间
	repo2 := newFakeOrderRepo()
	uc2 := newTestOrderUsecase(repo2, nil, nil)
	o2 := seedOrder(repo2, constants.OrderStatusPaid, constants.TradingStatusOpening)
	repo2.orders[o2.ID].PayType = constants.PayTypeQuota

	if err := uc2.SetOrderResourceDeliverOK(context.Background(), "order1", "res1", result); err != nil {
		t.Fatalf("SetOrderResourceDeliverOK: %v", err)
	}
	o2 = repo2.orders["order1"]
	if o2.StartTime == nil || !o2.StartTime.Equal(start) || o2.EndTime == nil || !o2.EndTime.Equal(due) {
		t.Error("quota order start/end time should be set from deliver result")
	}
}

func TestSetOrderResourceDeliverFailed(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	seedOrder(repo, constants.OrderStatusPaid, constants.TradingStatusOpening)

	longMsg := strings.Repeat("x", 300)
	if err := uc.SetOrderResourceDeliverFailed(context.Background(), "order1", "res1", longMsg); err != nil {
		t.Fatalf("SetOrderResourceDeliverFailed: %v", err)
	}

	o := repo.orders["order1"]
	res := repo.resources["res1"]
	if o.TradingStatus != constants.TradingStatusUndelivered {
		t.Errorf("trading status = %s, want undelivered", o.TradingStatus)
	}
	if res.InstanceStatus != constants.InstanceStatusFailed {
		t.Errorf("instance status = %s, want failed", res.InstanceStatus)
	}
	if len(res.Desc) != 255 {
		t.Errorf("failure message should be truncated to 255, got %d", len(res.Desc))
	}
}

func TestDeliverOrderSuccess(t *testing.T) {
	repo := newFakeOrderRepo()
	deliverer := &fakeDeliverer{result: &DeliverResult{
		InstanceID: "real-srv-1",
		StartTime:  time.Now().UTC(),
		DueTime:    time.Now().UTC().AddDate(0, 1, 0),
	}}
	uc := newTestOrderUsecase(repo, nil, deliverer)
	seedOrder(repo, constants.OrderStatusPaid, constants.TradingStatusOpening)

	if err := uc.DeliverOrder(context.Background(), "order1", requesterU1); err != nil {
		t.Fatalf("DeliverOrder: %v", err)
	}
	if deliverer.calls != 1 {
		t.Errorf("deliverer calls = %d, want 1", deliverer.calls)
	}

	o := repo.orders["order1"]
	if o.TradingStatus != constants.TradingStatusCompleted {
		t.Errorf("trading status = %s, want completed", o.TradingStatus)
	}
	if o.OrderAction != constants.OrderActionNone {
		t.Errorf("order action = %s, want none after delivery", o.OrderAction)
	}
	if repo.resources["res1"].InstanceStatus != constants.InstanceStatusSuccess {
		t.Error("resource should be delivered")
	}
}

func TestDeliverOrderFailed(t *testing.T) {
	repo := newFakeOrderRepo()
	deliverer := &fakeDeliverer{err: fmt.Errorf("quota exceeded")}
	uc := newTestOrderUsecase(repo, nil, deliverer)
	seedOrder(repo, constants.OrderStatusPaid, constants.TradingStatusOpening)

	if err := uc.DeliverOrder(context.Background(), "order1", requesterU1); err == nil {
		t.Fatal("expected deliver error")
	}

	o := repo.orders["order1"]
	if o.TradingStatus != constants.TradingStatusUndelivered {
		t.Errorf("trading status = %s, want undelivered", o.TradingStatus)
	}
	if o.OrderAction != constants.OrderActionNone {
		t.Errorf("order action = %s, want none after delivery", o.OrderAction)
	}
	if repo.resources["res1"].InstanceStatus != constants.InstanceStatusFailed {
		t.Error("resource should be marked failed")
	}

	// 未支付的订单不允许交付
	repo2 := newFakeOrderRepo()
	uc2 := newTestOrderUsecase(repo2, nil, &fakeDeliverer{})
	seedOrder(repo2, constants.OrderStatusUnpaid, constants.TradingStatusOpening)
	if err := uc2.DeliverOrder(context.Background(), "order1", requesterU1); err == nil {
		t.Fatal("expected error delivering unpaid order")
	}
}

func TestSetOrderPaid(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	seedOrder(repo, constants.OrderStatusUnpaid, constants.TradingStatusOpening)

	payTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pay := decimal.NewFromFloat(81259.20)
	balance := decimal.NewFromFloat(81000.00)
	coupon := decimal.NewFromFloat(259.20)

	if err := uc.SetOrderPaid(context.Background(), "order1", pay, balance, coupon, payTime); err != nil {
		t.Fatalf("SetOrderPaid: %v", err)
	}

	o := repo.orders["order1"]
	if o.Status != constants.OrderStatusPaid {
		t.Errorf("status = %s, want paid", o.Status)
	}
	if o.PaymentTime == nil || !o.PaymentTime.Equal(payTime) {
		t.Error("payment time should be set")
	}
	if !o.PayAmount.Equal(pay) || !o.BalanceAmount.Equal(balance) || !o.CouponAmount.Equal(coupon) {
		t.Errorf("pay amounts = %s/%s/%s, want %s/%s/%s",
			o.PayAmount, o.BalanceAmount, o.CouponAmount, pay, balance, coupon)
	}

	// 已支付的订单不允许重复支付
	err := uc.SetOrderPaid(context.Background(), "order1", pay, balance, coupon, payTime)
	if err == nil {
		t.Fatal("expected error on repeated payment")
	}
	if !errors.IsOrderPaid(err) {
		t.Errorf("expected OrderPaid, got %v", err)
	}
}

func TestSetOrderRefundSuccess(t *testing.T) {
	// 全额退款，订单已退款，交易完成
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	seedOrder(repo, constants.OrderStatusPaid, constants.TradingStatusOpening)

	if err := uc.SetOrderRefundSuccess(context.Background(), "order1", true); err != nil {
		t.Fatalf("SetOrderRefundSuccess: %v", err)
	}
	o := repo.orders["order1"]
	if o.Status != constants.OrderStatusRefund {
		t.Errorf("status = %s, want refund", o.Status)
	}
	if o.TradingStatus != constants.TradingStatusCompleted {
		t.Errorf("trading status = %s, want completed", o.TradingStatus)
	}

	// 部分退款
	repo2 := newFakeOrderRepo()
	uc2 := newTestOrderUsecase(repo2, nil, nil)
	seedOrder(repo2, constants.OrderStatusRefunding, constants.TradingStatusOpening)

	if err := uc2.SetOrderRefundSuccess(context.Background(), "order1", false); err != nil {
		t.Fatalf("SetOrderRefundSuccess: %v", err)
	}
	o2 := repo2.orders["order1"]
	if o2.Status != constants.OrderStatusPartRefund {
		t.Errorf("status = %s, want partrefund", o2.Status)
	}
	if o2.TradingStatus != constants.TradingStatusCompleted {
		t.Errorf("trading status = %s, want completed", o2.TradingStatus)
	}

	// 交易关闭和交易完成状态的订单不允许修改
	testCases := []struct {
		name          string
		status        string
		tradingStatus string
	}{
		{"closed", constants.OrderStatusCancelled, constants.TradingStatusClosed},
		{"completed", constants.OrderStatusRefund, constants.TradingStatusCompleted},
	}
	for _, tc := range testCases {
		repo3 := newFakeOrderRepo()
		uc3 := newTestOrderUsecase(repo3, nil, nil)
		seedOrder(repo3, tc.status, tc.tradingStatus)

		err := uc3.SetOrderRefundSuccess(context.Background(), "order1", true)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), "不允许修改") {
			t.Errorf("%s: unexpected error message: %v", tc.name, err)
		}
		o3 := repo3.orders["order1"]
		if o3.Status != tc.status || o3.TradingStatus != tc.tradingStatus {
			t.Errorf("%s: order state changed to %s/%s", tc.name, o3.Status, o3.TradingStatus)
		}
	}
}

func TestGetPermissionOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	uc := newTestOrderUsecase(repo, nil, nil)
	seedOrder(repo, constants.OrderStatusUnpaid, constants.TradingStatusOpening)

	// 其他用户无权访问
	other := auth.Requester{UserID: "u2", Username: "jerry", Role: auth.RoleUser}
	if _, err := uc.GetPermissionOrder(context.Background(), "order1", other, true); !errors.IsAccessDenied(err) {
		t.Errorf("expected AccessDenied, got %v", err)
	}

	// 联邦管理员可以访问
	admin := auth.Requester{UserID: "u3", Username: "admin", Role: auth.RoleFederalAdmin}
	if _, err := uc.GetPermissionOrder(context.Background(), "order1", admin, true); err != nil {
		t.Errorf("federal admin should access order: %v", err)
	}
}
