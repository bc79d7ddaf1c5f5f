package biz

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// 订单交易状态机。
// 所有状态迁移都在事务内先对订单行加锁、重读并重新校验后执行，
// 防止并发的支付、交付、取消操作互相覆盖。

// canCancelOrderCheck 订单是否允许取消
func canCancelOrderCheck(order *Order) error {
	switch order.TradingStatus {
	case constants.TradingStatusClosed:
		return errors.OrderTradingClosed("订单交易已关闭")
	case constants.TradingStatusCompleted:
		return errors.OrderTradingCompleted("订单交易已完成")
	}

	switch order.Status {
	case constants.OrderStatusUnpaid:
	case constants.OrderStatusPaid:
		return errors.OrderPaid("订单已支付，不允许取消")
	case constants.OrderStatusCancelled:
		return errors.OrderCancelled("订单已作废")
	case constants.OrderStatusRefunding, constants.OrderStatusRefund, constants.OrderStatusPartRefund:
		return errors.OrderRefund("订单正在退款或已退款，不允许取消")
	default:
		return errors.OrderStatusUnknown("未知状态的订单")
	}

	if order.OrderAction == constants.OrderActionDelivering {
		return errors.TryAgainLater("正在交付订单资源，请稍后重试")
	}
	return nil
}

// canDeleteOrderCheck 订单是否允许删除
func canDeleteOrderCheck(order *Order) error {
	switch order.Status {
	case constants.OrderStatusUnpaid:
		return errors.Conflict(errors.ReasonConflict, "未支付状态的订单，请先取消订单后再尝试删除")
	case constants.OrderStatusRefunding:
		return errors.OrderRefund("退款中的订单，不允许删除")
	}

	switch order.TradingStatus {
	case constants.TradingStatusOpening, constants.TradingStatusUndelivered:
		if order.Status == constants.OrderStatusPaid {
			return errors.Conflict(errors.ReasonConflictTradingStatus, "订单未完成交易，不允许删除")
		}
	}

	if order.OrderAction == constants.OrderActionDelivering {
		return errors.TryAgainLater("正在交付订单资源，请稍后重试")
	}
	return nil
}

// CancelOrder 取消订单，只有未支付的订单可以取消
func (uc *OrderUsecase) CancelOrder(ctx context.Context, orderID string, r auth.Requester) (*Order, error) {
	order, err := uc.GetPermissionOrder(ctx, orderID, r, false)
	if err != nil {
		return nil, err
	}
	// 锁外预检，快速拒绝明显不允许的取消
	if err := canCancelOrderCheck(order); err != nil {
		return nil, err
	}
	return uc.DoCancelOrder(ctx, order.ID)
}

// DoCancelOrder 在事务内加锁重校验后取消订单，
// 订单置为作废，交易状态关闭
func (uc *OrderUsecase) DoCancelOrder(ctx context.Context, orderID string) (*Order, error) {
	var order *Order
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		var err error
		order, err = uc.repo.GetOrder(ctx, orderID, true)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if order == nil {
			return errors.NotFound("订单不存在")
		}
		if err := canCancelOrderCheck(order); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := uc.repo.UpdateOrder(ctx, order.ID, map[string]interface{}{
			"status":          constants.OrderStatusCancelled,
			"trading_status":  constants.TradingStatusClosed,
			"completion_time": now,
		}); err != nil {
			return errors.ConvertToError(err)
		}
		order.Status = constants.OrderStatusCancelled
		order.TradingStatus = constants.TradingStatusClosed
		order.CompletionTime = &now
		return nil
	})
	if err != nil {
		return nil, errors.ConvertToError(err)
	}
	uc.log.Infof("Cancelled order %s", orderID)
	return order, nil
}

// DeleteOrder 删除订单(软删除)，重复删除不报错
func (uc *OrderUsecase) DeleteOrder(ctx context.Context, orderID string, r auth.Requester) error {
	order, err := uc.GetPermissionOrder(ctx, orderID, r, false)
	if err != nil {
		if errors.IsNotFound(err) {
			// 幂等，订单不存在或已删除视为删除成功
			return nil
		}
		return err
	}
	if err := canDeleteOrderCheck(order); err != nil {
		return err
	}
	return uc.DoDeleteOrder(ctx, order.ID)
}

// DoDeleteOrder 在事务内加锁重校验后软删除订单
func (uc *OrderUsecase) DoDeleteOrder(ctx context.Context, orderID string) error {
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		order, err := uc.repo.GetOrder(ctx, orderID, true)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if order == nil || order.Deleted {
			return nil
		}
		if err := canDeleteOrderCheck(order); err != nil {
			return err
		}
		return errors.ConvertToError(uc.repo.UpdateOrder(ctx, order.ID, map[string]interface{}{
			"deleted": true,
		}))
	})
	if err != nil {
		return errors.ConvertToError(err)
	}
	uc.log.Infof("Deleted order %s", orderID)
	return nil
}

// CanDeliverOrRefundForOrder 订单是否处于可以交付资源或退款的状态
func CanDeliverOrRefundForOrder(order *Order) error {
	if order.Status != constants.OrderStatusPaid {
		switch order.Status {
		case constants.OrderStatusUnpaid:
			return errors.OrderUnpaid("订单未支付")
		case constants.OrderStatusCancelled:
			return errors.OrderCancelled("订单已作废")
		case constants.OrderStatusRefunding, constants.OrderStatusRefund, constants.OrderStatusPartRefund:
			return errors.OrderRefund("订单已退款或退款中")
		}
		return errors.OrderStatusUnknown("未知状态的订单")
	}

	switch order.TradingStatus {
	case constants.TradingStatusOpening, constants.TradingStatusUndelivered:
		return nil
	case constants.TradingStatusClosed:
		return errors.OrderTradingClosed("订单交易已关闭")
	case constants.TradingStatusCompleted:
		return errors.OrderTradingCompleted("订单交易已完成")
	}
	return errors.OrderStatusUnknown("未知交易状态的订单")
}

// SetOrderResourceDeliverOK 单资源订单交付成功后落库。
// 订单行和资源行在同一事务内加锁更新；两个更新都是尽力而为，
// 一个失败不阻止另一个执行，失败信息拼接后整体报错
func (uc *OrderUsecase) SetOrderResourceDeliverOK(
	ctx context.Context, orderID, resourceID string, result *DeliverResult,
) error {
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		order, err := uc.repo.GetOrder(ctx, orderID, true)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if order == nil {
			return errors.NotFound("订单不存在")
		}
		if order.TradingStatus == constants.TradingStatusClosed ||
			order.TradingStatus == constants.TradingStatusCompleted {
			return errors.Conflict(errors.ReasonConflictTradingStatus, "交易关闭和交易完成状态的订单不允许修改")
		}

		now := time.Now().UTC()
		message := ""

		resourceFields := map[string]interface{}{
			"instance_status": constants.InstanceStatusSuccess,
			"delivered_time":  now,
			"desc":            "",
		}
		if result != nil && result.InstanceID != "" {
			resourceFields["instance_id"] = result.InstanceID
		}
		if err := uc.repo.UpdateResource(ctx, resourceID, resourceFields); err != nil {
			message += "更新订单资源交付结果错误：" + err.Error() + "；"
		}

		orderFields := map[string]interface{}{
			"trading_status":  constants.TradingStatusCompleted,
			"completion_time": now,
		}
		if order.PayType != constants.PayTypePostpaid && result != nil && !result.StartTime.IsZero() {
			orderFields["start_time"] = result.StartTime
			orderFields["end_time"] = result.DueTime
		}
		if err := uc.repo.UpdateOrder(ctx, order.ID, orderFields); err != nil {
			message += "更新订单交易状态错误：" + err.Error() + "；"
		}

		if message != "" {
			return errors.Error(message)
		}
		return nil
	})
	return errors.ConvertToError(err)
}

// SetOrderResourceDeliverFailed 单资源订单交付失败后落库，
// 资源记录置为交付失败，订单交易状态置为未交付，失败原因截断保存
func (uc *OrderUsecase) SetOrderResourceDeliverFailed(
	ctx context.Context, orderID, resourceID, failedMsg string,
) error {
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		order, err := uc.repo.GetOrder(ctx, orderID, true)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if order == nil {
			return errors.NotFound("订单不存在")
		}
		if order.TradingStatus == constants.TradingStatusClosed ||
			order.TradingStatus == constants.TradingStatusCompleted {
			return errors.Conflict(errors.ReasonConflictTradingStatus, "交易关闭和交易完成状态的订单不允许修改")
		}

		if len(failedMsg) > 255 {
			failedMsg = failedMsg[:255]
		}

		message := ""
		if err := uc.repo.UpdateResource(ctx, resourceID, map[string]interface{}{
			"instance_status": constants.InstanceStatusFailed,
			"desc":            failedMsg,
		}); err != nil {
			message += "更新订单资源交付结果错误：" + err.Error() + "；"
		}
		if err := uc.repo.UpdateOrder(ctx, order.ID, map[string]interface{}{
			"trading_status": constants.TradingStatusUndelivered,
		}); err != nil {
			message += "更新订单交易状态错误：" + err.Error() + "；"
		}

		if message != "" {
			return errors.Error(message)
		}
		return nil
	})
	return errors.ConvertToError(err)
}

// SetOrderDeliverSuccess 多资源订单整体交付成功，只迁移订单交易状态，
// 各资源记录的交付结果由调用方逐条落库
func (uc *OrderUsecase) SetOrderDeliverSuccess(ctx context.Context, orderID string) error {
	return uc.setOrderTradingStatus(ctx, orderID, constants.TradingStatusCompleted)
}

// SetOrderDeliverFailed 多资源订单交付失败(全部或部分)
func (uc *OrderUsecase) SetOrderDeliverFailed(ctx context.Context, orderID string) error {
	return uc.setOrderTradingStatus(ctx, orderID, constants.TradingStatusUndelivered)
}

func (uc *OrderUsecase) setOrderTradingStatus(ctx context.Context, orderID, tradingStatus string) error {
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		order, err := uc.repo.GetOrder(ctx, orderID, true)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if order == nil {
			return errors.NotFound("订单不存在")
		}
		if order.TradingStatus == constants.TradingStatusClosed ||
			order.TradingStatus == constants.TradingStatusCompleted {
			return errors.Conflict(errors.ReasonConflictTradingStatus, "交易关闭和交易完成状态的订单不允许修改")
		}

		fields := map[string]interface{}{
			"trading_status": tradingStatus,
		}
		if tradingStatus == constants.TradingStatusCompleted {
			fields["completion_time"] = time.Now().UTC()
		}
		return errors.ConvertToError(uc.repo.UpdateOrder(ctx, order.ID, fields))
	})
	return errors.ConvertToError(err)
}

// SetOrderPaid 订单支付成功后落库，由支付回调触发
func (uc *OrderUsecase) SetOrderPaid(
	ctx context.Context, orderID string, payAmount, balanceAmount, couponAmount decimal.Decimal, paymentTime time.Time,
) error {
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		order, err := uc.repo.GetOrder(ctx, orderID, true)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if order == nil {
			return errors.NotFound("订单不存在")
		}
		if order.Status != constants.OrderStatusUnpaid {
			return errors.OrderPaid("订单不是待支付状态")
		}
		if order.TradingStatus == constants.TradingStatusClosed {
			return errors.OrderTradingClosed("订单交易已关闭")
		}

		return errors.ConvertToError(uc.repo.UpdateOrder(ctx, order.ID, map[string]interface{}{
			"status":         constants.OrderStatusPaid,
			"payment_time":   paymentTime,
			"pay_amount":     payAmount,
			"balance_amount": balanceAmount,
			"coupon_amount":  couponAmount,
		}))
	})
	return errors.ConvertToError(err)
}

// SetOrderRefundSuccess 订单退款成功后落库，
// fullRefund为true时订单置为已全额退款，否则部分退款；交易状态完成
func (uc *OrderUsecase) SetOrderRefundSuccess(ctx context.Context, orderID string, fullRefund bool) error {
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		order, err := uc.repo.GetOrder(ctx, orderID, true)
		if err != nil {
			return errors.ConvertToError(err)
		}
		if order == nil {
			return errors.NotFound("订单不存在")
		}
		if order.TradingStatus == constants.TradingStatusClosed ||
			order.TradingStatus == constants.TradingStatusCompleted {
			return errors.Conflict(errors.ReasonConflictTradingStatus, "交易关闭和交易完成状态的订单不允许修改")
		}

		status := constants.OrderStatusPartRefund
		if fullRefund {
			status = constants.OrderStatusRefund
		}
		return errors.ConvertToError(uc.repo.UpdateOrder(ctx, order.ID, map[string]interface{}{
			"status":         status,
			"trading_status": constants.TradingStatusCompleted,
		}))
	})
	return errors.ConvertToError(err)
}
