package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// 每日计量单，每个资源实例每天一条，由离线计量任务生成后不再修改，
// 汇入日结算单时只回填DailyStatementID

// MeteringServer 云主机每日计量单
type MeteringServer struct {
	ID               string
	ServerID         string
	Date             time.Time
	ServiceID        string
	CPUHours         float64
	RamHours         float64
	DiskHours        float64
	PublicIPHours    float64
	OriginalAmount   decimal.Decimal
	TradeAmount      decimal.Decimal
	DailyStatementID string
	PayType          string
	UserID           string
	Username         string
	VoID             string
	VoName           string
	OwnerType        string
	CreatedAt        time.Time
}

// MeteringDisk 云硬盘每日计量单
type MeteringDisk struct {
	ID               string
	DiskID           string
	Date             time.Time
	ServiceID        string
	SizeHours        float64
	OriginalAmount   decimal.Decimal
	TradeAmount      decimal.Decimal
	DailyStatementID string
	PayType          string
	UserID           string
	Username         string
	VoID             string
	VoName           string
	OwnerType        string
	CreatedAt        time.Time
}

// MeteringObjectStorage 对象存储桶每日计量单，存储桶只归属用户
type MeteringObjectStorage struct {
	ID               string
	StorageBucketID  string
	BucketName       string
	Date             time.Time
	ServiceID        string
	StorageByteHours float64
	DownstreamFlow   float64
	GetRequestCount  int64
	PutRequestCount  int64
	OriginalAmount   decimal.Decimal
	TradeAmount      decimal.Decimal
	DailyStatementID string
	UserID           string
	Username         string
	CreatedAt        time.Time
}

// MeteringMonitorWebsite 站点监控每日计量单，监控任务只归属用户
type MeteringMonitorWebsite struct {
	ID               string
	WebsiteID        string
	WebsiteName      string
	Date             time.Time
	Hours            float64
	DetectionCount   int64
	OriginalAmount   decimal.Decimal
	TradeAmount      decimal.Decimal
	DailyStatementID string
	UserID           string
	Username         string
	CreatedAt        time.Time
}

// MeteringFilter 计量单查询过滤条件，四种计量单共用
type MeteringFilter struct {
	InstanceID string // server_id/disk_id/bucket_id/website_id
	ServiceID  string
	UserID     string
	VoID       string
	DateStart  *time.Time
	DateEnd    *time.Time
	Page       int
	PageSize   int
}

// MeteringAggregate 计量聚合结果，按实例/用户/vo组/服务单元分组求和
type MeteringAggregate struct {
	InstanceID     string
	ServiceID      string
	UserID         string
	Username       string
	VoID           string
	VoName         string
	OriginalAmount decimal.Decimal
	TradeAmount    decimal.Decimal
	Count          int64
}

// AggregateBy 聚合维度
type AggregateBy string

const (
	AggregateByInstance AggregateBy = "instance"
	AggregateByUser     AggregateBy = "user"
	AggregateByVo       AggregateBy = "vo"
	AggregateByService  AggregateBy = "service"
)

// MeteringServerRepo 云主机计量单仓库接口
type MeteringServerRepo interface {
	Create(ctx context.Context, m *MeteringServer) error
	List(ctx context.Context, filter *MeteringFilter) ([]*MeteringServer, int64, error)
	Aggregate(ctx context.Context, by AggregateBy, filter *MeteringFilter) ([]*MeteringAggregate, int64, error)
	// ListUnstatemented 指定日期未汇入结算单的按量计费计量单
	ListUnstatemented(ctx context.Context, date time.Time) ([]*MeteringServer, error)
	// AttachStatement 把计量单回填到一张日结算单
	AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error
	ListByStatementID(ctx context.Context, statementID string) ([]*MeteringServer, error)
}

// MeteringDiskRepo 云硬盘计量单仓库接口
type MeteringDiskRepo interface {
	Create(ctx context.Context, m *MeteringDisk) error
	List(ctx context.Context, filter *MeteringFilter) ([]*MeteringDisk, int64, error)
	Aggregate(ctx context.Context, by AggregateBy, filter *MeteringFilter) ([]*MeteringAggregate, int64, error)
	ListUnstatemented(ctx context.Context, date time.Time) ([]*MeteringDisk, error)
	AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error
	ListByStatementID(ctx context.Context, statementID string) ([]*MeteringDisk, error)
}

// MeteringStorageRepo 对象存储计量单仓库接口
type MeteringStorageRepo interface {
	Create(ctx context.Context, m *MeteringObjectStorage) error
	List(ctx context.Context, filter *MeteringFilter) ([]*MeteringObjectStorage, int64, error)
	ListUnstatemented(ctx context.Context, date time.Time) ([]*MeteringObjectStorage, error)
	AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error
	ListByStatementID(ctx context.Context, statementID string) ([]*MeteringObjectStorage, error)
}

// MeteringWebsiteRepo 站点监控计量单仓库接口
type MeteringWebsiteRepo interface {
	Create(ctx context.Context, m *MeteringMonitorWebsite) error
	List(ctx context.Context, filter *MeteringFilter) ([]*MeteringMonitorWebsite, int64, error)
	ListUnstatemented(ctx context.Context, date time.Time) ([]*MeteringMonitorWebsite, error)
	AttachStatement(ctx context.Context, statementID string, meteringIDs []string) error
	ListByStatementID(ctx context.Context, statementID string) ([]*MeteringMonitorWebsite, error)
}

// MeteringUsecase 计量单读侧查询和聚合，
// 普通用户只能查自己或所在vo组的计量单，联邦管理员不受限
type MeteringUsecase struct {
	serverRepo  MeteringServerRepo
	diskRepo    MeteringDiskRepo
	storageRepo MeteringStorageRepo
	websiteRepo MeteringWebsiteRepo
	log         *log.Helper
}

func NewMeteringUsecase(
	serverRepo MeteringServerRepo, diskRepo MeteringDiskRepo,
	storageRepo MeteringStorageRepo, websiteRepo MeteringWebsiteRepo,
	logger log.Logger,
) *MeteringUsecase {
	return &MeteringUsecase{
		serverRepo:  serverRepo,
		diskRepo:    diskRepo,
		storageRepo: storageRepo,
		websiteRepo: websiteRepo,
		log:         log.NewHelper(logger),
	}
}

// scopeFilter 按请求人身份收束查询范围。
// 非管理员：指定vo_id时查vo组计量单(成员关系由网关保证)，否则只查自己的
func scopeFilter(filter *MeteringFilter, r auth.Requester) *MeteringFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = constants.DefaultPageSize
	}
	if filter.PageSize > constants.MaxPageSize {
		filter.PageSize = constants.MaxPageSize
	}

	if r.IsFederalAdmin() {
		return filter
	}
	if filter.VoID == "" {
		filter.UserID = r.UserID
	}
	return filter
}

// ListServerMeterings 查询云主机计量单列表
func (uc *MeteringUsecase) ListServerMeterings(
	ctx context.Context, filter *MeteringFilter, r auth.Requester,
) ([]*MeteringServer, int64, error) {
	return uc.serverRepo.List(ctx, scopeFilter(filter, r))
}

// AggregateServerMeterings 云主机计量聚合。
// 按用户/vo组/服务单元聚合是管理员视角，普通用户只能按自己的实例聚合
func (uc *MeteringUsecase) AggregateServerMeterings(
	ctx context.Context, by AggregateBy, filter *MeteringFilter, r auth.Requester,
) ([]*MeteringAggregate, int64, error) {
	switch by {
	case AggregateByInstance:
	case AggregateByUser, AggregateByVo, AggregateByService:
		if !r.IsFederalAdmin() {
			return nil, 0, errors.AccessDenied("您没有管理员权限")
		}
	default:
		return nil, 0, errors.InvalidArgument("无效的聚合维度")
	}
	return uc.serverRepo.Aggregate(ctx, by, scopeFilter(filter, r))
}

// ListDiskMeterings 查询云硬盘计量单列表
func (uc *MeteringUsecase) ListDiskMeterings(
	ctx context.Context, filter *MeteringFilter, r auth.Requester,
) ([]*MeteringDisk, int64, error) {
	return uc.diskRepo.List(ctx, scopeFilter(filter, r))
}

// AggregateDiskMeterings 云硬盘计量聚合
func (uc *MeteringUsecase) AggregateDiskMeterings(
	ctx context.Context, by AggregateBy, filter *MeteringFilter, r auth.Requester,
) ([]*MeteringAggregate, int64, error) {
	switch by {
	case AggregateByInstance:
	case AggregateByUser, AggregateByVo, AggregateByService:
		if !r.IsFederalAdmin() {
			return nil, 0, errors.AccessDenied("您没有管理员权限")
		}
	default:
		return nil, 0, errors.InvalidArgument("无效的聚合维度")
	}
	return uc.diskRepo.Aggregate(ctx, by, scopeFilter(filter, r))
}

// ListStorageMeterings 查询对象存储计量单列表，存储桶只归属用户
func (uc *MeteringUsecase) ListStorageMeterings(
	ctx context.Context, filter *MeteringFilter, r auth.Requester,
) ([]*MeteringObjectStorage, int64, error) {
	filter = scopeFilter(filter, r)
	if !r.IsFederalAdmin() {
		filter.UserID = r.UserID
		filter.VoID = ""
	}
	return uc.storageRepo.List(ctx, filter)
}

// ListWebsiteMeterings 查询站点监控计量单列表，监控任务只归属用户
func (uc *MeteringUsecase) ListWebsiteMeterings(
	ctx context.Context, filter *MeteringFilter, r auth.Requester,
) ([]*MeteringMonitorWebsite, int64, error) {
	filter = scopeFilter(filter, r)
	if !r.IsFederalAdmin() {
		filter.UserID = r.UserID
		filter.VoID = ""
	}
	return uc.websiteRepo.List(ctx, filter)
}
