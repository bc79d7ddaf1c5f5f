package biz

import (
	"context"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// Order 订单，一次资源订购意向
type Order struct {
	ID             string
	OrderType      string
	Status         string // 支付/退款状态轴
	TotalAmount    decimal.Decimal
	PayableAmount  decimal.Decimal
	PayAmount      decimal.Decimal
	BalanceAmount  decimal.Decimal
	CouponAmount   decimal.Decimal
	AppServiceID   string
	ServiceID      string
	ServiceName    string
	ResourceType   string
	InstanceConfig string // 订购规格快照(json)
	Period         int
	PeriodUnit     string
	PayType        string
	PaymentTime    *time.Time
	StartTime      *time.Time
	EndTime        *time.Time
	UserID         string
	Username       string
	VoID           string
	VoName         string
	OwnerType      string
	Deleted        bool
	TradingStatus  string // 资源交付状态轴
	CompletionTime *time.Time
	OrderAction    string
	Number         int
	Description    string
	CreatedAt      time.Time
}

// Resource 订单订购的一个资源实例记录
type Resource struct {
	ID                 string
	OrderID            string
	ResourceType       string
	InstanceID         string
	InstanceStatus     string
	InstanceRemark     string
	Desc               string
	DeliveredTime      *time.Time
	InstanceDeleteTime *time.Time
	CreatedAt          time.Time
}

// OrderFilter 订单查询过滤条件
type OrderFilter struct {
	UserID       string
	VoID         string
	ResourceType string
	OrderType    string
	Status       string
	TimeStart    *time.Time
	TimeEnd      *time.Time
	Deleted      *bool
	ServiceIDs   []string // 管理员按服务单元过滤
	Page         int
	PageSize     int
}

// OrderRepo 订单仓库接口。
// 显式的字段更新接口代替活动记录模式，便于测试时用内存实现替换；
// forUpdate=true时在当前事务内对行加排它锁(SELECT ... FOR UPDATE)
type OrderRepo interface {
	CreateOrderWithResources(ctx context.Context, order *Order, resources []*Resource) error
	GetOrder(ctx context.Context, orderID string, forUpdate bool) (*Order, error)
	GetOrderResources(ctx context.Context, orderID string, forUpdate bool) ([]*Resource, error)
	GetResource(ctx context.Context, resourceID string, forUpdate bool) (*Resource, error)
	// UpdateOrder 按列名更新订单字段
	UpdateOrder(ctx context.Context, orderID string, fields map[string]interface{}) error
	// UpdateResource 按列名更新资源记录字段
	UpdateResource(ctx context.Context, resourceID string, fields map[string]interface{}) error
	ListOrders(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error)
	// SetResourceInstanceDeleted 资源实例删除时回填删除时间
	SetResourceInstanceDeleted(ctx context.Context, resourceType, instanceID string) error
}

// OrderUsecase 订单业务逻辑：订单创建、交易状态机、资源交付驱动
type OrderUsecase struct {
	repo      OrderRepo
	price     *PriceUsecase
	balance   BalanceClient
	deliverer ResourceDeliverer
	tm        Transaction
	log       *log.Helper
}

func NewOrderUsecase(
	repo OrderRepo, price *PriceUsecase, balance BalanceClient,
	deliverer ResourceDeliverer, tm Transaction, logger log.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		repo:      repo,
		price:     price,
		balance:   balance,
		deliverer: deliverer,
		tm:        tm,
		log:       log.NewHelper(logger),
	}
}

// postpaidBalanceCheckAmount 按量付费订单创建前的余额预检金额
var postpaidBalanceCheckAmount = decimal.NewFromInt(100)

// shortID 25位短id
func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:25]
}

// newOrderID 时间前缀订单号
func newOrderID(t time.Time) string {
	return t.UTC().Format("20060102150405") + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// newInstanceID 按资源类型生成带后缀的资源实例id
func newInstanceID(resourceType string) string {
	id := shortID()
	switch resourceType {
	case constants.ResourceTypeVM:
		id += "-i"
	case constants.ResourceTypeDisk:
		id += "-d"
	case constants.ResourceTypeVMSnapshot:
		id += "-s"
	}
	return id
}

// CreateOrderParams 新购/按量转包年包月订单参数
type CreateOrderParams struct {
	OrderType    string
	ServiceID    string
	AppServiceID string
	ServiceName  string
	ResourceType string
	Config       InstanceConfig
	Period       int
	PeriodUnit   string
	PayType      string
	UserID       string
	Username     string
	VoID         string
	VoName       string
	OwnerType    string
	Number       int
	Remark       string
	Description  string
}

// CreateOrder 提交一个订单，订单和订购数量个资源记录在一个事务内落库
func (uc *OrderUsecase) CreateOrder(ctx context.Context, p *CreateOrderParams) (*Order, []*Resource, error) {
	number := p.Number
	if number <= 0 {
		number = 1
	}
	instanceIDs := make([]string, 0, number)
	for i := 0; i < number; i++ {
		instanceIDs = append(instanceIDs, newInstanceID(p.ResourceType))
	}

	return uc.createOrderForResources(ctx, &createParams{
		OrderType: p.OrderType, PayType: p.PayType,
		AppServiceID: p.AppServiceID, ServiceID: p.ServiceID, ServiceName: p.ServiceName,
		ResourceType: p.ResourceType, InstanceIDs: instanceIDs, Config: p.Config,
		Period: p.Period, PeriodUnit: p.PeriodUnit,
		UserID: p.UserID, Username: p.Username, VoID: p.VoID, VoName: p.VoName,
		OwnerType: p.OwnerType, InstanceRemark: p.Remark, Description: p.Description,
	})
}

// RenewOrderParams 续费订单参数。
// 指定续费时长period时，start/end必须为空；指定续费起止时间时period必须为0
type RenewOrderParams struct {
	ServiceID    string
	AppServiceID string
	ServiceName  string
	ResourceType string
	InstanceID   string
	Config       InstanceConfig
	Period       int
	PeriodUnit   string
	StartTime    *time.Time
	EndTime      *time.Time
	UserID       string
	Username     string
	VoID         string
	VoName       string
	OwnerType    string
	Description  string
}

// CreateRenewOrder 提交一个续费订单
func (uc *OrderUsecase) CreateRenewOrder(ctx context.Context, p *RenewOrderParams) (*Order, *Resource, error) {
	periodUnit := p.PeriodUnit
	if periodUnit == "" {
		periodUnit = constants.PeriodUnitMonth
	}

	var days float64
	if p.Period > 0 {
		var err error
		days, err = ConvertPeriodDays(p.Period, periodUnit)
		if err != nil {
			return nil, nil, err
		}
	} else {
		if p.StartTime == nil || p.EndTime == nil {
			return nil, nil, errors.Error("无法创建订单，必须同时指定时段起始和终止时间。")
		}
		days = p.EndTime.Sub(*p.StartTime).Hours() / 24
	}

	if days > constants.MaxRenewalDays {
		return nil, nil, errors.Conflict(errors.ReasonPeriodTooLong, "单次续费时长不能超过2年")
	}

	order, resources, err := uc.createOrderForResources(ctx, &createParams{
		OrderType: constants.OrderTypeRenewal, PayType: constants.PayTypePrepaid,
		AppServiceID: p.AppServiceID, ServiceID: p.ServiceID, ServiceName: p.ServiceName,
		ResourceType: p.ResourceType, InstanceIDs: []string{p.InstanceID}, Config: p.Config,
		Period: p.Period, PeriodUnit: periodUnit, StartTime: p.StartTime, EndTime: p.EndTime,
		UserID: p.UserID, Username: p.Username, VoID: p.VoID, VoName: p.VoName,
		OwnerType: p.OwnerType, InstanceRemark: "renew", Description: p.Description,
	})
	if err != nil {
		return nil, nil, err
	}
	return order, resources[0], nil
}

// ScanOrderParams 安全扫描订单参数
type ScanOrderParams struct {
	ServiceID    string
	AppServiceID string
	ServiceName  string
	Config       ScanConfig
	UserID       string
	Username     string
}

// CreateScanOrder 提交一个安全扫描订单。
// 支持同时创建web和host两个扫描任务，订单资源记录可能为2条
func (uc *OrderUsecase) CreateScanOrder(ctx context.Context, p *ScanOrderParams) (*Order, []*Resource, error) {
	var instanceIDs []string
	if p.Config.WebURL != "" {
		instanceIDs = append(instanceIDs, shortID())
	}
	if p.Config.HostAddr != "" {
		instanceIDs = append(instanceIDs, shortID())
	}
	if len(instanceIDs) == 0 {
		return nil, nil, errors.Error("没有安全扫描任务")
	}

	return uc.createOrderForResources(ctx, &createParams{
		OrderType: constants.OrderTypeNew, PayType: constants.PayTypePrepaid,
		AppServiceID: p.AppServiceID, ServiceID: p.ServiceID, ServiceName: p.ServiceName,
		ResourceType: constants.ResourceTypeScan, InstanceIDs: instanceIDs, Config: p.Config,
		Period: 0, PeriodUnit: constants.PeriodUnitDay,
		UserID: p.UserID, Username: p.Username,
		OwnerType: constants.OwnerTypeUser, InstanceRemark: p.Config.Remark,
	})
}

type createParams struct {
	OrderType      string
	PayType        string
	AppServiceID   string
	ServiceID      string
	ServiceName    string
	ResourceType   string
	InstanceIDs    []string
	Config         InstanceConfig
	Period         int
	PeriodUnit     string
	StartTime      *time.Time
	EndTime        *time.Time
	UserID         string
	Username       string
	VoID           string
	VoName         string
	OwnerType      string
	InstanceRemark string
	Description    string
}

// checkPeriodTime 校验订购时长和起止时间的互斥关系，返回(时长, 天数)
func checkPeriodTime(orderType, payType string, period int, periodUnit string, startTime, endTime *time.Time) (int, float64, error) {
	if period < 0 {
		return 0, 0, errors.Error("无法创建订单，时长不能小于0。")
	}
	if !constants.ValidPeriodUnits[periodUnit] {
		return 0, 0, errors.Error("无法创建订单，订购时长单位无效。")
	}

	var days float64
	if orderType == constants.OrderTypeRenewal {
		if period > 0 && (startTime != nil || endTime != nil) {
			return 0, 0, errors.Error("无法创建订单，不能同时指定时段起止时间和时长。")
		}

		if startTime != nil || endTime != nil {
			if startTime == nil || endTime == nil {
				return 0, 0, errors.Error("无法创建订单，必须同时指定时段起始和终止时间。")
			}
			if !endTime.After(*startTime) {
				return 0, 0, errors.Error("无法创建订单，时间段不合法，时段终止时间不应小于起始时间。")
			}
			days = endTime.Sub(*startTime).Hours() / 24
			period = 0
		} else if period > 0 {
			days = 0
		} else {
			return 0, 0, errors.Error("无法创建订单，时长必须大于0。")
		}
	} else {
		if startTime != nil || endTime != nil {
			return 0, 0, errors.Error("无法创建订单，只有续费订单可以指定时段起止时间。")
		}
		days = 0
	}

	if payType == constants.PayTypePrepaid {
		if period == 0 && days == 0 {
			return 0, 0, errors.Error("无法创建订单，必须指定时段或者时长。")
		}
	}

	return period, days, nil
}

// checkOwner 归属人校验：user_id和vo_id二选一，owner_type区分
func checkOwner(ownerType, userID, voID string) error {
	switch ownerType {
	case constants.OwnerTypeUser:
		if userID == "" {
			return errors.Error("无法创建订单，订单归属用户无效")
		}
	case constants.OwnerTypeVo:
		if voID == "" {
			return errors.Error("无法创建订单，订单归属vo组无效")
		}
	default:
		return errors.Error("无法创建订单，订单所属类型无效")
	}
	return nil
}

// createOrderForResources 为资源实例提交一个订单，新购、续费、按量转包年包月
func (uc *OrderUsecase) createOrderForResources(ctx context.Context, p *createParams) (*Order, []*Resource, error) {
	if len(p.InstanceIDs) == 0 {
		return nil, nil, errors.Error("无法创建订单，必须指定订单资源实例id")
	}

	number := len(p.InstanceIDs)
	seen := make(map[string]bool, number)
	for _, id := range p.InstanceIDs {
		if seen[id] {
			return nil, nil, errors.Error("无法创建订单，指定订单资源实例id有重复")
		}
		seen[id] = true
	}

	period := p.Period
	var days float64
	var err error
	if p.ResourceType == constants.ResourceTypeScan {
		// scan订单可能包含web和host两个任务，订购数量按1计
		number = 1
		period, days = 0, 0
	} else {
		period, days, err = checkPeriodTime(p.OrderType, p.PayType, p.Period, p.PeriodUnit, p.StartTime, p.EndTime)
		if err != nil {
			return nil, nil, err
		}
	}

	if p.ResourceType == constants.ResourceTypeVMSnapshot && number != 1 {
		return nil, nil, errors.Error("无法创建订单，快照订购数量必须为1")
	}

	if err := checkOwner(p.OwnerType, p.UserID, p.VoID); err != nil {
		return nil, nil, err
	}
	if !constants.ValidResourceTypes[p.ResourceType] {
		return nil, nil, errors.Error("无法创建订单，资源类型无效")
	}
	if !constants.ValidOrderTypes[p.OrderType] {
		return nil, nil, errors.Error("无法创建订单，订单类型无效或不支持")
	}
	if !constants.ValidPayTypes[p.PayType] {
		return nil, nil, errors.Error("无法创建订单，资源计费方式pay_type无效")
	}

	if p.Config == nil || p.Config.ResourceType() != p.ResourceType {
		return nil, nil, errors.Error("无法创建订单，资源类型和资源规格配置不匹配")
	}

	var totalAmount, tradePrice decimal.Decimal
	if p.PayType == constants.PayTypePrepaid {
		// 询价计算的是单实例价格，数量乘法在这里做，避免重复乘
		totalAmount, tradePrice, err = uc.price.CalculateAmountMoney(
			ctx, p.ResourceType, p.Config, true, period, p.PeriodUnit, days)
		if err != nil {
			return nil, nil, err
		}
		if number > 1 {
			n := decimal.NewFromInt(int64(number))
			totalAmount = totalAmount.Mul(n)
			tradePrice = tradePrice.Mul(n)
		}
	} else if p.PayType == constants.PayTypePostpaid {
		if err := uc.checkBalanceForPostpaid(ctx, p); err != nil {
			return nil, nil, err
		}
	}

	configJSON, err := MarshalInstanceConfig(p.Config)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	order := &Order{
		ID:             newOrderID(now),
		OrderType:      p.OrderType,
		Status:         constants.OrderStatusUnpaid,
		TotalAmount:    totalAmount,
		PayableAmount:  tradePrice,
		PayAmount:      decimal.Zero,
		BalanceAmount:  decimal.Zero,
		CouponAmount:   decimal.Zero,
		AppServiceID:   p.AppServiceID,
		ServiceID:      p.ServiceID,
		ServiceName:    p.ServiceName,
		ResourceType:   p.ResourceType,
		InstanceConfig: configJSON,
		Period:         period,
		PeriodUnit:     p.PeriodUnit,
		PayType:        p.PayType,
		StartTime:      p.StartTime,
		EndTime:        p.EndTime,
		UserID:         p.UserID,
		Username:       p.Username,
		VoID:           p.VoID,
		VoName:         p.VoName,
		OwnerType:      p.OwnerType,
		Deleted:        false,
		TradingStatus:  constants.TradingStatusOpening,
		OrderAction:    constants.OrderActionNone,
		Number:         number,
		Description:    p.Description,
		CreatedAt:      now,
	}

	resources := make([]*Resource, 0, len(p.InstanceIDs))
	for _, insID := range p.InstanceIDs {
		resources = append(resources, &Resource{
			ID:             shortID(),
			OrderID:        order.ID,
			ResourceType:   p.ResourceType,
			InstanceID:     insID,
			InstanceStatus: constants.InstanceStatusWait,
			InstanceRemark: p.InstanceRemark,
			CreatedAt:      now,
		})
	}

	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		return uc.repo.CreateOrderWithResources(ctx, order, resources)
	})
	if err != nil {
		uc.log.Errorf("Failed to create order: %v", err)
		return nil, nil, errors.ConvertToError(err)
	}

	uc.log.Infof("Created order %s: type=%s, resource=%s, number=%d, payable=%s",
		order.ID, order.OrderType, order.ResourceType, order.Number, order.PayableAmount.String())
	return order, resources, nil
}

// checkBalanceForPostpaid 按量付费订单创建前的余额预检
func (uc *OrderUsecase) checkBalanceForPostpaid(ctx context.Context, p *createParams) error {
	var enough bool
	var err error
	if p.OwnerType == constants.OwnerTypeVo {
		enough, err = uc.balance.HasEnoughBalanceVo(ctx, p.VoID, postpaidBalanceCheckAmount, true, p.AppServiceID)
	} else {
		enough, err = uc.balance.HasEnoughBalanceUser(ctx, p.UserID, postpaidBalanceCheckAmount, true, p.AppServiceID)
	}
	if err != nil {
		uc.log.Errorf("Failed to check balance: %v", err)
		return errors.ConvertToError(err)
	}
	if !enough {
		return errors.BalanceNotEnough("余额不足，不能创建按量计费订单")
	}
	return nil
}

// GetPermissionOrder 查询有访问权限的订单
func (uc *OrderUsecase) GetPermissionOrder(ctx context.Context, orderID string, r auth.Requester, readOnly bool) (*Order, error) {
	order, err := uc.repo.GetOrder(ctx, orderID, false)
	if err != nil {
		return nil, errors.ConvertToError(err)
	}
	if order == nil || order.Deleted {
		return nil, errors.NotFound("订单不存在")
	}

	if r.IsFederalAdmin() {
		return order, nil
	}
	if order.OwnerType == constants.OwnerTypeUser {
		if order.UserID != "" && order.UserID != r.UserID {
			return nil, errors.AccessDenied("您没有此订单访问权限")
		}
	}
	// vo组订单的成员关系由网关层保证，这里不再查询vo成员表
	return order, nil
}

// GetOrderDetail 查询订单详情
func (uc *OrderUsecase) GetOrderDetail(ctx context.Context, orderID string, r auth.Requester) (*Order, []*Resource, error) {
	order, err := uc.GetPermissionOrder(ctx, orderID, r, true)
	if err != nil {
		return nil, nil, err
	}
	resources, err := uc.repo.GetOrderResources(ctx, orderID, false)
	if err != nil {
		return nil, nil, errors.ConvertToError(err)
	}
	return order, resources, nil
}

// ListOrders 查询用户或vo组的订单列表
func (uc *OrderUsecase) ListOrders(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = constants.DefaultPageSize
	}
	if filter.PageSize > constants.MaxPageSize {
		filter.PageSize = constants.MaxPageSize
	}
	return uc.repo.ListOrders(ctx, filter)
}

// SetResourceServerDeleted 云主机实例删除时回填订单资源记录的删除时间
func (uc *OrderUsecase) SetResourceServerDeleted(ctx context.Context, instanceID string) error {
	return uc.repo.SetResourceInstanceDeleted(ctx, constants.ResourceTypeVM, instanceID)
}

// SetResourceDiskDeleted 云硬盘实例删除时回填订单资源记录的删除时间
func (uc *OrderUsecase) SetResourceDiskDeleted(ctx context.Context, instanceID string) error {
	return uc.repo.SetResourceInstanceDeleted(ctx, constants.ResourceTypeDisk, instanceID)
}
