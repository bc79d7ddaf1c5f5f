package service

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// OrderService 订单HTTP服务
type OrderService struct {
	uc  *biz.OrderUsecase
	log *log.Helper
}

// NewOrderService 创建订单服务
func NewOrderService(uc *biz.OrderUsecase, logger log.Logger) *OrderService {
	return &OrderService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// CreateOrderRequest 提交订单请求
type CreateOrderRequest struct {
	ServiceID      string          `json:"service_id"`
	AppServiceID   string          `json:"app_service_id"`
	ServiceName    string          `json:"service_name"`
	ResourceType   string          `json:"resource_type"`
	OrderType      string          `json:"order_type"` // new, post2pre，默认new
	PayType        string          `json:"pay_type"`
	Period         int             `json:"period"`
	PeriodUnit     string          `json:"period_unit"`
	Number         int             `json:"number"`
	VoID           string          `json:"vo_id"` // 指定时为vo组订单
	VoName         string          `json:"vo_name"`
	Remark         string          `json:"remark"`
	Description    string          `json:"description"`
	InstanceConfig json.RawMessage `json:"instance_config"`
}

// OrderReply 订单响应
type OrderReply struct {
	ID             string           `json:"id"`
	OrderType      string           `json:"order_type"`
	Status         string           `json:"status"`
	TotalAmount    string           `json:"total_amount"`
	PayableAmount  string           `json:"payable_amount"`
	PayAmount      string           `json:"pay_amount"`
	BalanceAmount  string           `json:"balance_amount"`
	CouponAmount   string           `json:"coupon_amount"`
	ServiceID      string           `json:"service_id"`
	ServiceName    string           `json:"service_name"`
	ResourceType   string           `json:"resource_type"`
	InstanceConfig json.RawMessage  `json:"instance_config"`
	Period         int              `json:"period"`
	PeriodUnit     string           `json:"period_unit"`
	PayType        string           `json:"pay_type"`
	PaymentTime    *time.Time       `json:"payment_time"`
	StartTime      *time.Time       `json:"start_time"`
	EndTime        *time.Time       `json:"end_time"`
	UserID         string           `json:"user_id"`
	Username       string           `json:"username"`
	VoID           string           `json:"vo_id"`
	VoName         string           `json:"vo_name"`
	OwnerType      string           `json:"owner_type"`
	TradingStatus  string           `json:"trading_status"`
	CompletionTime *time.Time       `json:"completion_time"`
	Number         int              `json:"number"`
	CreationTime   time.Time        `json:"creation_time"`
	Resources      []*ResourceReply `json:"resources,omitempty"`
}

// ResourceReply 订单资源记录响应
type ResourceReply struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	ResourceType   string     `json:"resource_type"`
	InstanceID     string     `json:"instance_id"`
	InstanceStatus string     `json:"instance_status"`
	InstanceRemark string     `json:"instance_remark"`
	Desc           string     `json:"desc"`
	DeliveredTime  *time.Time `json:"delivered_time"`
	CreationTime   time.Time  `json:"creation_time"`
}

func toOrderReply(o *biz.Order, resources []*biz.Resource) *OrderReply {
	reply := &OrderReply{
		ID:             o.ID,
		OrderType:      o.OrderType,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount.String(),
		PayableAmount:  o.PayableAmount.String(),
		PayAmount:      o.PayAmount.String(),
		BalanceAmount:  o.BalanceAmount.String(),
		CouponAmount:   o.CouponAmount.String(),
		ServiceID:      o.ServiceID,
		ServiceName:    o.ServiceName,
		ResourceType:   o.ResourceType,
		InstanceConfig: json.RawMessage(o.InstanceConfig),
		Period:         o.Period,
		PeriodUnit:     o.PeriodUnit,
		PayType:        o.PayType,
		PaymentTime:    o.PaymentTime,
		StartTime:      o.StartTime,
		EndTime:        o.EndTime,
		UserID:         o.UserID,
		Username:       o.Username,
		VoID:           o.VoID,
		VoName:         o.VoName,
		OwnerType:      o.OwnerType,
		TradingStatus:  o.TradingStatus,
		CompletionTime: o.CompletionTime,
		Number:         o.Number,
		CreationTime:   o.CreatedAt,
	}
	for _, res := range resources {
		reply.Resources = append(reply.Resources, &ResourceReply{
			ID:             res.ID,
			OrderID:        res.OrderID,
			ResourceType:   res.ResourceType,
			InstanceID:     res.InstanceID,
			InstanceStatus: res.InstanceStatus,
			InstanceRemark: res.InstanceRemark,
			Desc:           res.Desc,
			DeliveredTime:  res.DeliveredTime,
			CreationTime:   res.CreatedAt,
		})
	}
	return reply
}

// CreateOrder 提交新购订单
func (s *OrderService) CreateOrder(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	var req CreateOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.InvalidArgument("无效的请求体")
	}

	config, err := biz.UnmarshalInstanceConfig(req.ResourceType, string(req.InstanceConfig))
	if err != nil {
		return err
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = constants.OrderTypeNew
	}
	periodUnit := req.PeriodUnit
	if periodUnit == "" {
		periodUnit = constants.PeriodUnitMonth
	}
	ownerType := constants.OwnerTypeUser
	if req.VoID != "" {
		ownerType = constants.OwnerTypeVo
	}

	order, resources, err := s.uc.CreateOrder(rctx, &biz.CreateOrderParams{
		OrderType:    orderType,
		ServiceID:    req.ServiceID,
		AppServiceID: req.AppServiceID,
		ServiceName:  req.ServiceName,
		ResourceType: req.ResourceType,
		Config:       config,
		Period:       req.Period,
		PeriodUnit:   periodUnit,
		PayType:      req.PayType,
		UserID:       r.UserID,
		Username:     r.Username,
		VoID:         req.VoID,
		VoName:       req.VoName,
		OwnerType:    ownerType,
		Number:       req.Number,
		Remark:       req.Remark,
		Description:  req.Description,
	})
	if err != nil {
		return err
	}
	return ctx.Result(200, toOrderReply(order, resources))
}

// RenewOrderRequest 续费订单请求，period和start/end二选一
type RenewOrderRequest struct {
	ServiceID      string          `json:"service_id"`
	AppServiceID   string          `json:"app_service_id"`
	ServiceName    string          `json:"service_name"`
	ResourceType   string          `json:"resource_type"`
	InstanceID     string          `json:"instance_id"`
	Period         int             `json:"period"`
	PeriodUnit     string          `json:"period_unit"`
	StartTime      *time.Time      `json:"start_time"`
	EndTime        *time.Time      `json:"end_time"`
	VoID           string          `json:"vo_id"`
	VoName         string          `json:"vo_name"`
	InstanceConfig json.RawMessage `json:"instance_config"`
}

// CreateRenewOrder 提交续费订单
func (s *OrderService) CreateRenewOrder(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	var req RenewOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.InvalidArgument("无效的请求体")
	}

	config, err := biz.UnmarshalInstanceConfig(req.ResourceType, string(req.InstanceConfig))
	if err != nil {
		return err
	}

	ownerType := constants.OwnerTypeUser
	if req.VoID != "" {
		ownerType = constants.OwnerTypeVo
	}

	order, resource, err := s.uc.CreateRenewOrder(rctx, &biz.RenewOrderParams{
		ServiceID:    req.ServiceID,
		AppServiceID: req.AppServiceID,
		ServiceName:  req.ServiceName,
		ResourceType: req.ResourceType,
		InstanceID:   req.InstanceID,
		Config:       config,
		Period:       req.Period,
		PeriodUnit:   req.PeriodUnit,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		UserID:       r.UserID,
		Username:     r.Username,
		VoID:         req.VoID,
		VoName:       req.VoName,
		OwnerType:    ownerType,
	})
	if err != nil {
		return err
	}
	return ctx.Result(200, toOrderReply(order, []*biz.Resource{resource}))
}

// ScanOrderRequest 安全扫描订单请求，web_url和host_addr至少指定一个
type ScanOrderRequest struct {
	ServiceID    string `json:"service_id"`
	AppServiceID string `json:"app_service_id"`
	ServiceName  string `json:"service_name"`
	Name         string `json:"name"`
	WebURL       string `json:"web_url"`
	HostAddr     string `json:"host_addr"`
	Remark       string `json:"remark"`
}

// CreateScanOrder 提交安全扫描订单
func (s *OrderService) CreateScanOrder(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	var req ScanOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.InvalidArgument("无效的请求体")
	}
	if req.WebURL == "" && req.HostAddr == "" {
		return errors.InvalidArgument("站点地址和主机地址至少指定一个")
	}

	order, resources, err := s.uc.CreateScanOrder(rctx, &biz.ScanOrderParams{
		ServiceID:    req.ServiceID,
		AppServiceID: req.AppServiceID,
		ServiceName:  req.ServiceName,
		Config: biz.ScanConfig{
			TaskName: req.Name,
			WebURL:   req.WebURL,
			HostAddr: req.HostAddr,
			Remark:   req.Remark,
		},
		UserID:   r.UserID,
		Username: r.Username,
	})
	if err != nil {
		return err
	}
	return ctx.Result(200, toOrderReply(order, resources))
}

// GetOrder 查询订单详情
func (s *OrderService) GetOrder(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	orderID := ctx.Vars().Get("id")
	order, resources, err := s.uc.GetOrderDetail(rctx, orderID, r)
	if err != nil {
		return err
	}
	return ctx.Result(200, toOrderReply(order, resources))
}

// ListOrders 查询订单列表
func (s *OrderService) ListOrders(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	q := ctx.Query()
	filter := &biz.OrderFilter{
		ResourceType: q.Get("resource_type"),
		OrderType:    q.Get("order_type"),
		Status:       q.Get("status"),
		VoID:         q.Get("vo_id"),
		Page:         queryInt(q.Get("page"), 1),
		PageSize:     queryInt(q.Get("page_size"), constants.DefaultPageSize),
	}
	if t, ok := queryTime(q.Get("time_start")); ok {
		filter.TimeStart = &t
	}
	if t, ok := queryTime(q.Get("time_end")); ok {
		filter.TimeEnd = &t
	}

	// 管理员可以按服务单元查询所有订单，普通用户只能查自己或vo组的
	if r.IsFederalAdmin() {
		if sid := q.Get("service_id"); sid != "" {
			filter.ServiceIDs = []string{sid}
		}
		if uid := q.Get("user_id"); uid != "" {
			filter.UserID = uid
		}
	} else if filter.VoID == "" {
		filter.UserID = r.UserID
	}

	orders, count, err := s.uc.ListOrders(rctx, filter)
	if err != nil {
		return err
	}

	results := make([]*OrderReply, 0, len(orders))
	for _, o := range orders {
		results = append(results, toOrderReply(o, nil))
	}
	return ctx.Result(200, &PageResult{
		Count:    count,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
		Results:  results,
	})
}

// CancelOrder 取消订单
func (s *OrderService) CancelOrder(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	orderID := ctx.Vars().Get("id")
	order, err := s.uc.CancelOrder(rctx, orderID, r)
	if err != nil {
		return err
	}
	return ctx.Result(200, map[string]string{"order_id": order.ID, "status": order.Status})
}

// DeleteOrder 删除订单
func (s *OrderService) DeleteOrder(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	orderID := ctx.Vars().Get("id")
	if err := s.uc.DeleteOrder(rctx, orderID, r); err != nil {
		return err
	}
	return ctx.Result(204, nil)
}

// DeliverOrder 交付(重试交付)订单资源
func (s *OrderService) DeliverOrder(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	orderID := ctx.Vars().Get("id")
	if err := s.uc.DeliverOrder(rctx, orderID, r); err != nil {
		return err
	}
	return ctx.Result(200, map[string]string{"order_id": orderID})
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func queryTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}
