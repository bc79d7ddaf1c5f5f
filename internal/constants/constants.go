package constants

import "time"

// 分页相关常量
const (
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 20
	// MaxPageSize 最大分页大小
	MaxPageSize = 100
)

// 订单支付状态
const (
	OrderStatusUnpaid     = "unpaid"     // 待支付
	OrderStatusPaid       = "paid"       // 已支付
	OrderStatusCancelled  = "cancelled"  // 已作废
	OrderStatusRefunding  = "refunding"  // 退款中
	OrderStatusRefund     = "refund"     // 已全额退款
	OrderStatusPartRefund = "partrefund" // 部分退款
)

// 订单交易状态(资源交付状态，与支付状态正交)
const (
	TradingStatusOpening     = "opening"     // 交易中
	TradingStatusUndelivered = "undelivered" // 订单资源交付失败
	TradingStatusCompleted   = "completed"   // 交易成功
	TradingStatusClosed      = "closed"      // 交易关闭(终态)
)

// 订单类型
const (
	OrderTypeNew      = "new"      // 新购
	OrderTypeRenewal  = "renewal"  // 续费
	OrderTypePost2Pre = "post2pre" // 按量付费转包年包月
)

// 订单动作
const (
	OrderActionNone       = "none"       // 无动作
	OrderActionDelivering = "delivering" // 正在交付订单资源
)

// 资源计费方式
const (
	PayTypePrepaid  = "prepaid"  // 包年包月预付费
	PayTypePostpaid = "postpaid" // 按量计费
	PayTypeQuota    = "quota"    // 资源配额券
)

// 订单、计量单归属类型
const (
	OwnerTypeUser = "user"
	OwnerTypeVo   = "vo"
)

// 资源类型
const (
	ResourceTypeVM         = "vm"
	ResourceTypeDisk       = "disk"
	ResourceTypeBucket     = "bucket"
	ResourceTypeScan       = "scan"
	ResourceTypeVMSnapshot = "vm_snapshot"
)

// 订购时长单位
const (
	PeriodUnitDay   = "day"
	PeriodUnitMonth = "month"
)

// 订单资源交付状态
const (
	InstanceStatusWait    = "wait"    // 待交付
	InstanceStatusSuccess = "success" // 交付成功
	InstanceStatusFailed  = "failed"  // 交付失败
)

// 日结算单支付状态
const (
	PaymentStatusUnpaid    = "unpaid"    // 待支付
	PaymentStatusPaid      = "paid"      // 已支付
	PaymentStatusCancelled = "cancelled" // 已作废
)

// 订购约束
const (
	// MaxRenewalDays 单次续费时长上限(2年)
	MaxRenewalDays = 365 * 2
	// DaysPerMonth 时长单位换算，1个月按30天计
	DaysPerMonth = 30
)

// 分布式锁相关常量
const (
	// MeteringLockExpiration 计量计费定时任务锁过期时间
	MeteringLockExpiration = 30 * time.Minute
	// MeteringLockRetries 计量计费定时任务锁重试次数
	MeteringLockRetries = 1
)

// ValidOwnerTypes 有效的归属类型
var ValidOwnerTypes = map[string]bool{
	OwnerTypeUser: true,
	OwnerTypeVo:   true,
}

// ValidResourceTypes 有效的资源类型
var ValidResourceTypes = map[string]bool{
	ResourceTypeVM:         true,
	ResourceTypeDisk:       true,
	ResourceTypeBucket:     true,
	ResourceTypeScan:       true,
	ResourceTypeVMSnapshot: true,
}

// ValidOrderTypes 有效的订单类型
var ValidOrderTypes = map[string]bool{
	OrderTypeNew:      true,
	OrderTypeRenewal:  true,
	OrderTypePost2Pre: true,
}

// ValidPayTypes 有效的计费方式
var ValidPayTypes = map[string]bool{
	PayTypePrepaid:  true,
	PayTypePostpaid: true,
	PayTypeQuota:    true,
}

// ValidPeriodUnits 有效的时长单位
var ValidPeriodUnits = map[string]bool{
	PeriodUnitDay:   true,
	PeriodUnitMonth: true,
}
