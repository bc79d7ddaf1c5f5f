package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/conf"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// delivererClient 订单资源交付服务HTTP客户端，
// 调用服务单元适配器入口的统一request_service契约
type delivererClient struct {
	addr   string
	client *http.Client
	log    *log.Helper
}

// NewDelivererClient 创建订单资源交付客户端
func NewDelivererClient(c *conf.Bootstrap, logger log.Logger) (biz.ResourceDeliverer, error) {
	addr := ""
	if c != nil && c.Client != nil && c.Client.DelivererService != nil {
		addr = c.Client.DelivererService.Addr
	}
	if addr == "" {
		// 如果没有配置，返回空实现（优雅降级）
		return &emptyDelivererClient{}, nil
	}

	return &delivererClient{
		addr: addr,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		log: log.NewHelper(logger),
	}, nil
}

// deliverRequest 交付请求，统一的request_service调用契约
type deliverRequest struct {
	ServiceID      string `json:"service_id"`
	Method         string `json:"method"`
	OrderID        string `json:"order_id"`
	ResourceType   string `json:"resource_type"`
	InstanceID     string `json:"instance_id"`
	InstanceConfig string `json:"instance_config"`
	InstanceRemark string `json:"instance_remark"`
	Period         int    `json:"period"`
	PeriodUnit     string `json:"period_unit"`
	PayType        string `json:"pay_type"`
	OwnerType      string `json:"owner_type"`
	UserID         string `json:"user_id"`
	VoID           string `json:"vo_id"`
}

// deliverReply 交付响应，ok区分成功和失败两个分支
type deliverReply struct {
	OK    bool `json:"ok"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result *struct {
		InstanceID string    `json:"instance_id"`
		StartTime  time.Time `json:"start_time"`
		DueTime    time.Time `json:"due_time"`
	} `json:"result"`
}

// Deliver 调用后端服务单元交付一个订单资源
func (c *delivererClient) Deliver(ctx context.Context, order *biz.Order, resource *biz.Resource) (*biz.DeliverResult, error) {
	body, err := json.Marshal(&deliverRequest{
		ServiceID:      order.ServiceID,
		Method:         "deliver",
		OrderID:        order.ID,
		ResourceType:   order.ResourceType,
		InstanceID:     resource.InstanceID,
		InstanceConfig: order.InstanceConfig,
		InstanceRemark: resource.InstanceRemark,
		Period:         order.Period,
		PeriodUnit:     order.PeriodUnit,
		PayType:        order.PayType,
		OwnerType:      order.OwnerType,
		UserID:         order.UserID,
		VoID:           order.VoID,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.addr+"/api/service/deliver", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Errorf("Failed to call deliverer for order %s: %v", order.ID, err)
		return nil, err
	}
	defer resp.Body.Close()

	var reply deliverReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, err
	}
	if !reply.OK {
		if reply.Error != nil {
			if reply.Error.Code == errors.ReasonQuotaShortage {
				return nil, errors.QuotaShortage(reply.Error.Message)
			}
			return nil, fmt.Errorf("deliver failed: %s %s", reply.Error.Code, reply.Error.Message)
		}
		return nil, fmt.Errorf("deliver failed: status %d", resp.StatusCode)
	}
	if reply.Result == nil {
		return nil, fmt.Errorf("deliver reply missing result")
	}

	return &biz.DeliverResult{
		InstanceID: reply.Result.InstanceID,
		StartTime:  reply.Result.StartTime,
		DueTime:    reply.Result.DueTime,
	}, nil
}

// emptyDelivererClient 空的交付客户端实现（优雅降级），
// 交付直接报错，订单置为未交付后可以在配置好后重试
type emptyDelivererClient struct{}

func (e *emptyDelivererClient) Deliver(ctx context.Context, order *biz.Order, resource *biz.Resource) (*biz.DeliverResult, error) {
	return nil, errors.Conflict(errors.ReasonConflict, "订单资源交付服务未配置")
}
