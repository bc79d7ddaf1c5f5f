package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// Price 资源定价，各规格项每小时单价
type Price struct {
	ID              string
	VMCPU           decimal.Decimal // 每核每小时
	VMRam           decimal.Decimal // 每GiB每小时
	VMDisk          decimal.Decimal // 系统盘每GiB每小时
	VMPubIP         decimal.Decimal // 公网IP每小时
	DiskSize        decimal.Decimal // 云硬盘每GiB每小时
	SnapshotSize    decimal.Decimal // 快照每GiB每小时
	ScanHost        decimal.Decimal // 主机扫描单次
	ScanWeb         decimal.Decimal // 站点扫描单次
	PrepaidDiscount int             // 预付费折扣，66表示按66%收
}

// PriceRepo 定价仓库接口
type PriceRepo interface {
	// GetPrice 获取当前生效的定价(最新一条)
	GetPrice(ctx context.Context) (*Price, error)
}

// PriceUsecase 询价计算，纯计算无副作用；
// 多实例订单的数量乘法由调用方完成，询价只计算单实例价格
type PriceUsecase struct {
	repo PriceRepo
	log  *log.Helper
}

func NewPriceUsecase(repo PriceRepo, logger log.Logger) *PriceUsecase {
	return &PriceUsecase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// ConvertPeriodDays 订购时长转换为天数
func ConvertPeriodDays(period int, periodUnit string) (float64, error) {
	switch periodUnit {
	case constants.PeriodUnitDay:
		return float64(period), nil
	case constants.PeriodUnitMonth:
		return float64(period * constants.DaysPerMonth), nil
	}
	return 0, errors.Error("订购时长单位无效")
}

// periodTotalHours 订购总小时数 = period时长 + days天数
func periodTotalHours(period int, periodUnit string, days float64) (float64, error) {
	periodDays := 0.0
	if period > 0 {
		var err error
		periodDays, err = ConvertPeriodDays(period, periodUnit)
		if err != nil {
			return 0, err
		}
	}
	return (periodDays + days) * 24, nil
}

// CalculateAmountMoney 计算资源订购金额，返回(原价, 应付金额)
//
// 资源类型和规格配置的具体类型必须匹配，否则报错而不是算出错误的价格
func (uc *PriceUsecase) CalculateAmountMoney(
	ctx context.Context, resourceType string, config InstanceConfig,
	isPrepaid bool, period int, periodUnit string, days float64,
) (original, trade decimal.Decimal, err error) {
	zero := decimal.Zero
	switch resourceType {
	case constants.ResourceTypeVM:
		cfg, ok := config.(ServerConfig)
		if !ok {
			return zero, zero, errors.Error("无法计算资源金额，资源类型和资源规格配置不匹配")
		}
		return uc.DescribeServerPrice(ctx, cfg, isPrepaid, period, periodUnit, days)
	case constants.ResourceTypeDisk:
		cfg, ok := config.(DiskConfig)
		if !ok {
			return zero, zero, errors.Error("无法计算资源金额，资源类型和资源规格配置不匹配")
		}
		return uc.DescribeDiskPrice(ctx, cfg, isPrepaid, period, periodUnit, days)
	case constants.ResourceTypeVMSnapshot:
		cfg, ok := config.(ServerSnapshotConfig)
		if !ok {
			return zero, zero, errors.Error("无法计算资源金额，资源类型和资源规格配置不匹配")
		}
		return uc.DescribeSnapshotPrice(ctx, cfg, isPrepaid, period, periodUnit, days)
	case constants.ResourceTypeBucket:
		if _, ok := config.(BucketConfig); !ok {
			return zero, zero, errors.Error("无法计算资源金额，资源类型和资源规格配置不匹配")
		}
		// 存储桶按用量后付费，订购时金额为0
		return zero, zero, nil
	case constants.ResourceTypeScan:
		cfg, ok := config.(ScanConfig)
		if !ok {
			return zero, zero, errors.Error("无法计算资源金额，资源类型和资源规格配置不匹配")
		}
		return uc.DescribeScanPrice(ctx, cfg)
	}
	return zero, zero, errors.Error("无法计算资源金额，资源类型无效")
}

// DescribeServerPrice 云主机询价
func (uc *PriceUsecase) DescribeServerPrice(
	ctx context.Context, cfg ServerConfig, isPrepaid bool, period int, periodUnit string, days float64,
) (original, trade decimal.Decimal, err error) {
	price, err := uc.repo.GetPrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.ConvertToError(err)
	}

	hours, err := periodTotalHours(period, periodUnit, days)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	// 每小时单价 = cpu核数*核单价 + 内存GiB*内存单价 + 系统盘GiB*盘单价 [+ 公网IP单价]
	hourly := decimal.NewFromInt(int64(cfg.VMCPU)).Mul(price.VMCPU).
		Add(decimal.NewFromFloat(cfg.RamGiB()).Mul(price.VMRam)).
		Add(decimal.NewFromInt(int64(cfg.VMSystemDiskGiB)).Mul(price.VMDisk))
	if cfg.VMPublicIP {
		hourly = hourly.Add(price.VMPubIP)
	}

	original = hourly.Mul(decimal.NewFromFloat(hours))
	return uc.applyDiscount(original, price, isPrepaid)
}

// DescribeDiskPrice 云硬盘询价
func (uc *PriceUsecase) DescribeDiskPrice(
	ctx context.Context, cfg DiskConfig, isPrepaid bool, period int, periodUnit string, days float64,
) (original, trade decimal.Decimal, err error) {
	price, err := uc.repo.GetPrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.ConvertToError(err)
	}

	hours, err := periodTotalHours(period, periodUnit, days)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	original = decimal.NewFromInt(int64(cfg.DiskSizeGiB)).Mul(price.DiskSize).
		Mul(decimal.NewFromFloat(hours))
	return uc.applyDiscount(original, price, isPrepaid)
}

// DescribeSnapshotPrice 云主机快照询价
func (uc *PriceUsecase) DescribeSnapshotPrice(
	ctx context.Context, cfg ServerSnapshotConfig, isPrepaid bool, period int, periodUnit string, days float64,
) (original, trade decimal.Decimal, err error) {
	price, err := uc.repo.GetPrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.ConvertToError(err)
	}

	hours, err := periodTotalHours(period, periodUnit, days)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	original = decimal.NewFromInt(int64(cfg.SystemDiskSizeGiB)).Mul(price.SnapshotSize).
		Mul(decimal.NewFromFloat(hours))
	return uc.applyDiscount(original, price, isPrepaid)
}

// DescribeScanPrice 安全扫描任务询价，按任务类型一次性收费
func (uc *PriceUsecase) DescribeScanPrice(ctx context.Context, cfg ScanConfig) (original, trade decimal.Decimal, err error) {
	price, err := uc.repo.GetPrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.ConvertToError(err)
	}

	original = decimal.Zero
	if cfg.HostAddr != "" {
		original = original.Add(price.ScanHost)
	}
	if cfg.WebURL != "" {
		original = original.Add(price.ScanWeb)
	}
	// 扫描任务不参与预付费折扣
	original = original.Round(2)
	return original, original, nil
}

// DescribeMeteringServerPrice 云主机按量计费单日计量金额，供计量任务使用
func (uc *PriceUsecase) DescribeMeteringServerPrice(
	ctx context.Context, cpuHours, ramGiBHours, diskGiBHours, publicIPHours float64,
) (decimal.Decimal, error) {
	price, err := uc.repo.GetPrice(ctx)
	if err != nil {
		return decimal.Zero, errors.ConvertToError(err)
	}

	amount := decimal.NewFromFloat(cpuHours).Mul(price.VMCPU).
		Add(decimal.NewFromFloat(ramGiBHours).Mul(price.VMRam)).
		Add(decimal.NewFromFloat(diskGiBHours).Mul(price.VMDisk)).
		Add(decimal.NewFromFloat(publicIPHours).Mul(price.VMPubIP))
	return amount.Round(2), nil
}

// applyDiscount 应用预付费折扣，金额保留2位小数
func (uc *PriceUsecase) applyDiscount(original decimal.Decimal, price *Price, isPrepaid bool) (decimal.Decimal, decimal.Decimal, error) {
	original = original.Round(2)
	trade := original
	if isPrepaid && price.PrepaidDiscount > 0 && price.PrepaidDiscount < 100 {
		trade = original.Mul(decimal.NewFromInt(int64(price.PrepaidDiscount))).
			Div(decimal.NewFromInt(100)).Round(2)
	}
	return original, trade, nil
}
