package biz

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/constants"
)

type fakePriceRepo struct {
	price *Price
}

func (r *fakePriceRepo) GetPrice(ctx context.Context) (*Price, error) {
	return r.price, nil
}

func testPriceUsecase() *PriceUsecase {
	repo := &fakePriceRepo{price: &Price{
		ID:              "price1",
		VMCPU:           decimal.NewFromInt(1),
		VMRam:           decimal.NewFromInt(2),
		VMDisk:          decimal.RequireFromString("0.5"),
		VMPubIP:         decimal.NewFromInt(1),
		DiskSize:        decimal.RequireFromString("0.1"),
		SnapshotSize:    decimal.RequireFromString("0.05"),
		ScanHost:        decimal.NewFromInt(100),
		ScanWeb:         decimal.NewFromInt(200),
		PrepaidDiscount: 66,
	}}
	return NewPriceUsecase(repo, log.NewStdLogger(io.Discard))
}

func TestConvertPeriodDays(t *testing.T) {
	testCases := []struct {
		period  int
		unit    string
		days    float64
		wantErr bool
	}{
		{1, constants.PeriodUnitMonth, 30, false},
		{12, constants.PeriodUnitMonth, 360, false},
		{7, constants.PeriodUnitDay, 7, false},
		{1, "year", 0, true},
	}
	for _, tc := range testCases {
		days, err := ConvertPeriodDays(tc.period, tc.unit)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ConvertPeriodDays(%d, %q): expected error", tc.period, tc.unit)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ConvertPeriodDays(%d, %q): %v", tc.period, tc.unit, err)
		}
		if days != tc.days {
			t.Errorf("ConvertPeriodDays(%d, %q) = %v, want %v", tc.period, tc.unit, days, tc.days)
		}
	}
}

func TestDescribeServerPrice(t *testing.T) {
	uc := testPriceUsecase()
	cfg := ServerConfig{
		VMCPU:           2,
		VMRamMiB:        2048,
		VMSystemDiskGiB: 100,
		VMPublicIP:      true,
	}

	// 每小时 2*1 + 2*2 + 100*0.5 + 1 = 57，1个月 = 720小时
	original, trade, err := uc.DescribeServerPrice(context.Background(), cfg, true, 1, constants.PeriodUnitMonth, 0)
	if err != nil {
		t.Fatalf("DescribeServerPrice: %v", err)
	}
	if got := original.StringFixed(2); got != "41040.00" {
		t.Errorf("original = %s, want 41040.00", got)
	}
	if got := trade.StringFixed(2); got != "27086.40" {
		t.Errorf("trade = %s, want 27086.40", got)
	}

	// 后付费不应用折扣
	_, trade, err = uc.DescribeServerPrice(context.Background(), cfg, false, 1, constants.PeriodUnitMonth, 0)
	if err != nil {
		t.Fatalf("DescribeServerPrice postpaid: %v", err)
	}
	if got := trade.StringFixed(2); got != "41040.00" {
		t.Errorf("postpaid trade = %s, want 41040.00", got)
	}
}

func TestDescribeDiskPriceWithDays(t *testing.T) {
	uc := testPriceUsecase()
	cfg := DiskConfig{DiskSizeGiB: 100}

	// 时段天数和订购时长可叠加：1天时长 + 1天时段 = 48小时
	original, trade, err := uc.DescribeDiskPrice(context.Background(), cfg, true, 1, constants.PeriodUnitDay, 1)
	if err != nil {
		t.Fatalf("DescribeDiskPrice: %v", err)
	}
	if got := original.StringFixed(2); got != "480.00" {
		t.Errorf("original = %s, want 480.00", got)
	}
	if got := trade.StringFixed(2); got != "316.80" {
		t.Errorf("trade = %s, want 316.80", got)
	}
}

func TestDescribeScanPrice(t *testing.T) {
	uc := testPriceUsecase()

	testCases := []struct {
		name string
		cfg  ScanConfig
		want string
	}{
		{"web only", ScanConfig{WebURL: "https://example.cn"}, "200.00"},
		{"host only", ScanConfig{HostAddr: "10.0.0.1"}, "100.00"},
		{"web and host", ScanConfig{WebURL: "https://example.cn", HostAddr: "10.0.0.1"}, "300.00"},
	}
	for _, tc := range testCases {
		original, trade, err := uc.DescribeScanPrice(context.Background(), tc.cfg)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := original.StringFixed(2); got != tc.want {
			t.Errorf("%s: original = %s, want %s", tc.name, got, tc.want)
		}
		// 扫描任务不参与预付费折扣
		if !trade.Equal(original) {
			t.Errorf("%s: trade %s != original %s", tc.name, trade, original)
		}
	}
}

func TestCalculateAmountMoneyConfigMismatch(t *testing.T) {
	uc := testPriceUsecase()

	_, _, err := uc.CalculateAmountMoney(
		context.Background(), constants.ResourceTypeVM, DiskConfig{DiskSizeGiB: 100},
		true, 1, constants.PeriodUnitMonth, 0)
	if err == nil {
		t.Fatal("expected error for mismatched config type")
	}
	if !strings.Contains(err.Error(), "不匹配") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestCalculateAmountMoneyBucketIsFree(t *testing.T) {
	uc := testPriceUsecase()

	original, trade, err := uc.CalculateAmountMoney(
		context.Background(), constants.ResourceTypeBucket, BucketConfig{BucketName: "b1"},
		true, 0, constants.PeriodUnitDay, 0)
	if err != nil {
		t.Fatalf("CalculateAmountMoney bucket: %v", err)
	}
	if !original.IsZero() || !trade.IsZero() {
		t.Errorf("bucket order should price to zero, got original=%s trade=%s", original, trade)
	}
}
