package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/data/model"
)

// orderRepo 订单仓库实现
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单仓库
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toOrderModel(o *biz.Order) *model.Order {
	return &model.Order{
		ID:             o.ID,
		OrderType:      o.OrderType,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount,
		PayableAmount:  o.PayableAmount,
		PayAmount:      o.PayAmount,
		BalanceAmount:  o.BalanceAmount,
		CouponAmount:   o.CouponAmount,
		AppServiceID:   o.AppServiceID,
		ServiceID:      o.ServiceID,
		ServiceName:    o.ServiceName,
		ResourceType:   o.ResourceType,
		InstanceConfig: o.InstanceConfig,
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
		Deleted:        o.Deleted,
		TradingStatus:  o.TradingStatus,
		CompletionTime: o.CompletionTime,
		OrderAction:    o.OrderAction,
		Number:         o.Number,
		Description:    o.Description,
		CreatedAt:      o.CreatedAt,
	}
}

func toBizOrder(m *model.Order) *biz.Order {
	return &biz.Order{
		ID:             m.ID,
		OrderType:      m.OrderType,
		Status:         m.Status,
		TotalAmount:    m.TotalAmount,
		PayableAmount:  m.PayableAmount,
		PayAmount:      m.PayAmount,
		BalanceAmount:  m.BalanceAmount,
		CouponAmount:   m.CouponAmount,
		AppServiceID:   m.AppServiceID,
		ServiceID:      m.ServiceID,
		ServiceName:    m.ServiceName,
		ResourceType:   m.ResourceType,
		InstanceConfig: m.InstanceConfig,
		Period:         m.Period,
		PeriodUnit:     m.PeriodUnit,
		PayType:        m.PayType,
		PaymentTime:    m.PaymentTime,
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
		UserID:         m.UserID,
		Username:       m.Username,
		VoID:           m.VoID,
		VoName:         m.VoName,
		OwnerType:      m.OwnerType,
		Deleted:        m.Deleted,
		TradingStatus:  m.TradingStatus,
		CompletionTime: m.CompletionTime,
		OrderAction:    m.OrderAction,
		Number:         m.Number,
		Description:    m.Description,
		CreatedAt:      m.CreatedAt,
	}
}

func toResourceModel(r *biz.Resource) *model.Resource {
	return &model.Resource{
		ID:                 r.ID,
		OrderID:            r.OrderID,
		ResourceType:       r.ResourceType,
		InstanceID:         r.InstanceID,
		InstanceStatus:     r.InstanceStatus,
		InstanceRemark:     r.InstanceRemark,
		Desc:               r.Desc,
		DeliveredTime:      r.DeliveredTime,
		InstanceDeleteTime: r.InstanceDeleteTime,
		CreatedAt:          r.CreatedAt,
	}
}

func toBizResource(m *model.Resource) *biz.Resource {
	return &biz.Resource{
		ID:                 m.ID,
		OrderID:            m.OrderID,
		ResourceType:       m.ResourceType,
		InstanceID:         m.InstanceID,
		InstanceStatus:     m.InstanceStatus,
		InstanceRemark:     m.InstanceRemark,
		Desc:               m.Desc,
		DeliveredTime:      m.DeliveredTime,
		InstanceDeleteTime: m.InstanceDeleteTime,
		CreatedAt:          m.CreatedAt,
	}
}

// CreateOrderWithResources 创建订单和订购的资源记录，调用方负责事务
func (r *orderRepo) CreateOrderWithResources(ctx context.Context, order *biz.Order, resources []*biz.Resource) error {
	db := r.data.DB(ctx)
	if err := db.Create(toOrderModel(order)).Error; err != nil {
		r.log.Errorf("Failed to create order %s: %v", order.ID, err)
		return err
	}
	for _, res := range resources {
		if err := db.Create(toResourceModel(res)).Error; err != nil {
			r.log.Errorf("Failed to create resource %s of order %s: %v", res.ID, order.ID, err)
			return err
		}
	}
	return nil
}

// GetOrder 获取订单，forUpdate为true时在当前事务内对行加排它锁；
// 订单不存在返回nil而不是错误
func (r *orderRepo) GetOrder(ctx context.Context, orderID string, forUpdate bool) (*biz.Order, error) {
	db := r.data.DB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m model.Order
	if err := db.First(&m, "order_id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		r.log.Errorf("Failed to get order %s: %v", orderID, err)
		return nil, err
	}
	return toBizOrder(&m), nil
}

// GetOrderResources 获取订单的资源记录列表
func (r *orderRepo) GetOrderResources(ctx context.Context, orderID string, forUpdate bool) ([]*biz.Resource, error) {
	db := r.data.DB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var ms []model.Resource
	if err := db.Where("order_id = ?", orderID).Order("creation_time ASC").Find(&ms).Error; err != nil {
		r.log.Errorf("Failed to get resources of order %s: %v", orderID, err)
		return nil, err
	}
	resources := make([]*biz.Resource, 0, len(ms))
	for i := range ms {
		resources = append(resources, toBizResource(&ms[i]))
	}
	return resources, nil
}

// GetResource 获取一条资源记录，不存在返回nil
func (r *orderRepo) GetResource(ctx context.Context, resourceID string, forUpdate bool) (*biz.Resource, error) {
	db := r.data.DB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m model.Resource
	if err := db.First(&m, "resource_id = ?", resourceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		r.log.Errorf("Failed to get resource %s: %v", resourceID, err)
		return nil, err
	}
	return toBizResource(&m), nil
}

// UpdateOrder 按列名更新订单字段
func (r *orderRepo) UpdateOrder(ctx context.Context, orderID string, fields map[string]interface{}) error {
	err := r.data.DB(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).Updates(fields).Error
	if err != nil {
		r.log.Errorf("Failed to update order %s: %v", orderID, err)
	}
	return err
}

// UpdateResource 按列名更新资源记录字段
func (r *orderRepo) UpdateResource(ctx context.Context, resourceID string, fields map[string]interface{}) error {
	err := r.data.DB(ctx).Model(&model.Resource{}).
		Where("resource_id = ?", resourceID).Updates(fields).Error
	if err != nil {
		r.log.Errorf("Failed to update resource %s: %v", resourceID, err)
	}
	return err
}

// ListOrders 查询订单列表
func (r *orderRepo) ListOrders(ctx context.Context, filter *biz.OrderFilter) ([]*biz.Order, int64, error) {
	db := r.data.DB(ctx).Model(&model.Order{})

	if filter.Deleted != nil {
		db = db.Where("deleted = ?", *filter.Deleted)
	} else {
		db = db.Where("deleted = ?", false)
	}
	if filter.VoID != "" {
		db = db.Where("vo_id = ? AND owner_type = ?", filter.VoID, "vo")
	} else if filter.UserID != "" {
		db = db.Where("user_id = ? AND owner_type = ?", filter.UserID, "user")
	}
	if filter.ResourceType != "" {
		db = db.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.OrderType != "" {
		db = db.Where("order_type = ?", filter.OrderType)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.TimeStart != nil {
		db = db.Where("creation_time >= ?", *filter.TimeStart)
	}
	if filter.TimeEnd != nil {
		db = db.Where("creation_time < ?", *filter.TimeEnd)
	}
	if len(filter.ServiceIDs) > 0 {
		db = db.Where("service_id IN ?", filter.ServiceIDs)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		r.log.Errorf("Failed to count orders: %v", err)
		return nil, 0, err
	}

	var ms []model.Order
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order("creation_time DESC").Offset(offset).Limit(filter.PageSize).Find(&ms).Error; err != nil {
		r.log.Errorf("Failed to list orders: %v", err)
		return nil, 0, err
	}

	orders := make([]*biz.Order, 0, len(ms))
	for i := range ms {
		orders = append(orders, toBizOrder(&ms[i]))
	}
	return orders, count, nil
}

// SetResourceInstanceDeleted 资源实例删除时回填删除时间
func (r *orderRepo) SetResourceInstanceDeleted(ctx context.Context, resourceType, instanceID string) error {
	err := r.data.DB(ctx).Model(&model.Resource{}).
		Where("resource_type = ? AND instance_id = ? AND instance_delete_time IS NULL", resourceType, instanceID).
		Update("instance_delete_time", time.Now().UTC()).Error
	if err != nil {
		r.log.Errorf("Failed to set instance %s deleted: %v", instanceID, err)
	}
	return err
}
