package biz

import (
	"context"
	"time"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// 订单资源交付驱动。
// 交付调用后端服务单元，耗时且不可回滚，必须在任何行锁之外进行；
// 订单动作order_action充当交付互斥标记，同一订单同时只有一个交付流程。

// claimOrderDelivering 在事务内加锁认领订单交付动作，
// none -> delivering，已在交付中的订单拒绝
func (uc *OrderUsecase) claimOrderDelivering(ctx context.Context, orderID string) (*Order, []*Resource, error) {
	var order *Order
	var resources []*Resource
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		var err error
		order, err = uc.repo.GetOrder(ctx, orderID, true)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if order == nil {
			return errors.NotFound("订单不存在")
		}
		if err := CanDeliverOrRefundForOrder(order); err != nil {
			return err
		}

		switch order.OrderAction {
		case constants.OrderActionNone:
		case constants.OrderActionDelivering:
			return errors.Conflict(errors.ReasonOrderDelivering, "订单资源正在交付中，请稍后重试")
		default:
			return errors.Conflict(errors.ReasonOrderActionUnknown, "未知的订单动作")
		}

		resources, err = uc.repo.GetOrderResources(ctx, order.ID, false)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if len(resources) == 0 {
			return errors.Error("订单没有待交付的资源记录")
		}

		if err := uc.repo.UpdateOrder(ctx, order.ID, map[string]interface{}{
			"order_action": constants.OrderActionDelivering,
		}); err != nil {
			return errors.ConvertToError(err)
		}
		order.OrderAction = constants.OrderActionDelivering
		return nil
	})
	if err != nil {
		return nil, nil, errors.ConvertToError(err)
	}
	return order, resources, nil
}

// releaseOrderAction 释放订单交付动作标记，失败只记录日志
func (uc *OrderUsecase) releaseOrderAction(ctx context.Context, orderID string) {
	if err := uc.repo.UpdateOrder(ctx, orderID, map[string]interface{}{
		"order_action": constants.OrderActionNone,
	}); err != nil {
		uc.log.Errorf("Failed to release order action of order %s: %v", orderID, err)
	}
}

// DeliverOrder 交付一个已支付订单的资源。
// 认领订单动作后逐个资源调用交付客户端，交付结果在锁内落库，
// 全部成功订单交易完成，任一失败订单置为未交付，失败的资源可重试
func (uc *OrderUsecase) DeliverOrder(ctx context.Context, orderID string, r auth.Requester) error {
	if _, err := uc.GetPermissionOrder(ctx, orderID, r, false); err != nil {
		return err
	}

	order, resources, err := uc.claimOrderDelivering(ctx, orderID)
	if err != nil {
		return err
	}
	defer uc.releaseOrderAction(context.WithoutCancel(ctx), orderID)

	// 已交付成功的资源不再重复交付，只重试待交付和交付失败的
	pending := make([]*Resource, 0, len(resources))
	for _, res := range resources {
		if res.InstanceStatus != constants.InstanceStatusSuccess {
			pending = append(pending, res)
		}
	}
	if len(pending) == 0 {
		return uc.SetOrderDeliverSuccess(ctx, order.ID)
	}

	if len(resources) == 1 {
		return uc.deliverSingleResource(ctx, order, pending[0])
	}
	return uc.deliverMultiResources(ctx, order, resources, pending)
}

// deliverSingleResource 单资源订单交付，结果直接驱动订单交易状态
func (uc *OrderUsecase) deliverSingleResource(ctx context.Context, order *Order, res *Resource) error {
	result, err := uc.deliverer.Deliver(ctx, order, res)
	if err != nil {
		uc.log.Errorf("Failed to deliver resource %s of order %s: %v", res.InstanceID, order.ID, err)
		if ferr := uc.SetOrderResourceDeliverFailed(ctx, order.ID, res.ID, err.Error()); ferr != nil {
			uc.log.Errorf("Failed to record deliver failure of order %s: %v", order.ID, ferr)
		}
		return errors.ConvertToError(err)
	}

	if err := uc.SetOrderResourceDeliverOK(ctx, order.ID, res.ID, result); err != nil {
		uc.log.Errorf("Failed to record deliver success of order %s: %v", order.ID, err)
		return err
	}
	uc.log.Infof("Delivered order %s, resource instance %s", order.ID, result.InstanceID)
	return nil
}

// deliverMultiResources 多资源订单交付，逐条落库资源交付结果后整体迁移订单交易状态
func (uc *OrderUsecase) deliverMultiResources(ctx context.Context, order *Order, all, pending []*Resource) error {
	now := time.Now().UTC()
	failedCount := 0
	for _, res := range pending {
		result, err := uc.deliverer.Deliver(ctx, order, res)
		if err != nil {
			failedCount++
			uc.log.Errorf("Failed to deliver resource %s of order %s: %v", res.InstanceID, order.ID, err)
			msg := err.Error()
			if len(msg) > 255 {
				msg = msg[:255]
			}
			if uerr := uc.repo.UpdateResource(ctx, res.ID, map[string]interface{}{
				"instance_status": constants.InstanceStatusFailed,
				"desc":            msg,
			}); uerr != nil {
				uc.log.Errorf("Failed to record deliver failure of resource %s: %v", res.ID, uerr)
			}
			continue
		}

		fields := map[string]interface{}{
			"instance_status": constants.InstanceStatusSuccess,
			"delivered_time":  now,
			"desc":            "",
		}
		if result.InstanceID != "" {
			fields["instance_id"] = result.InstanceID
		}
		if uerr := uc.repo.UpdateResource(ctx, res.ID, fields); uerr != nil {
			uc.log.Errorf("Failed to record deliver success of resource %s: %v", res.ID, uerr)
		}
	}

	if failedCount > 0 {
		if err := uc.SetOrderDeliverFailed(ctx, order.ID); err != nil {
			uc.log.Errorf("Failed to set order %s undelivered: %v", order.ID, err)
		}
		return errors.Conflict(errors.ReasonConflict, "部分订单资源交付失败")
	}
	if err := uc.SetOrderDeliverSuccess(ctx, order.ID); err != nil {
		return err
	}
	uc.log.Infof("Delivered order %s, %d resources", order.ID, len(all))
	return nil
}
