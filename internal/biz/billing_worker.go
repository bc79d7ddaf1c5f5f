package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"

	"github.com/GOSC-CNIC/vms/internal/constants"
)

// BillingWorker 计量计费定时任务入口。
// 结算单汇总和扣费每天各跑一次，redsync分布式锁保证多实例部署时只有一个实例执行
type BillingWorker struct {
	statement *StatementUsecase
	rs        *redsync.Redsync
	log       *log.Helper
}

func NewBillingWorker(statement *StatementUsecase, rs *redsync.Redsync, logger log.Logger) *BillingWorker {
	return &BillingWorker{
		statement: statement,
		rs:        rs,
		log:       log.NewHelper(logger),
	}
}

// yesterday 前一天的零点日期
func yesterday() time.Time {
	now := time.Now().UTC()
	y := now.AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
}

func (w *BillingWorker) withLock(ctx context.Context, lockKey string, fn func(ctx context.Context) error) error {
	mutex := w.rs.NewMutex(
		lockKey,
		redsync.WithExpiry(constants.MeteringLockExpiration),
		redsync.WithTries(constants.MeteringLockRetries), // 只尝试一次,如果失败说明其他实例正在处理
	)
	if err := mutex.LockContext(ctx); err != nil {
		w.log.Infof("Skipping job %s: lock busy or already processing", lockKey)
		return nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			w.log.Warnf("Failed to unlock %s: %v", lockKey, err)
		}
	}()
	return fn(ctx)
}

// RunDailyRollup 把前一天的四种计量单汇总为日结算单
func (w *BillingWorker) RunDailyRollup(ctx context.Context) error {
	return w.withLock(ctx, "metering_statement_rollup_lock", func(ctx context.Context) error {
		date := yesterday()
		w.log.Infof("Starting daily statement rollup for %s", date.Format("2006-01-02"))
		if err := w.statement.GenerateAllStatements(ctx, date); err != nil {
			w.log.Errorf("Daily statement rollup failed: %v", err)
			return err
		}
		w.log.Infof("Finished daily statement rollup for %s", date.Format("2006-01-02"))
		return nil
	})
}

// RunDailyPayment 对到期未支付的日结算单扣费
func (w *BillingWorker) RunDailyPayment(ctx context.Context) error {
	return w.withLock(ctx, "metering_statement_payment_lock", func(ctx context.Context) error {
		date := yesterday()
		w.log.Infof("Starting daily statement payment run up to %s", date.Format("2006-01-02"))
		if err := w.statement.PayAllStatements(ctx, date); err != nil {
			w.log.Errorf("Daily statement payment run failed: %v", err)
			return err
		}
		w.log.Infof("Finished daily statement payment run up to %s", date.Format("2006-01-02"))
		return nil
	})
}
