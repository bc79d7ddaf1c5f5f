package service

import (
	"net/url"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// MeteringService 计量单和日结算单HTTP服务
type MeteringService struct {
	metering  *biz.MeteringUsecase
	statement *biz.StatementUsecase
	log       *log.Helper
}

// NewMeteringService 创建计量计费服务
func NewMeteringService(metering *biz.MeteringUsecase, statement *biz.StatementUsecase, logger log.Logger) *MeteringService {
	return &MeteringService{
		metering:  metering,
		statement: statement,
		log:       log.NewHelper(logger),
	}
}

func meteringFilterFromQuery(q url.Values) *biz.MeteringFilter {
	filter := &biz.MeteringFilter{
		InstanceID: q.Get("instance_id"),
		ServiceID:  q.Get("service_id"),
		UserID:     q.Get("user_id"),
		VoID:       q.Get("vo_id"),
		Page:       queryInt(q.Get("page"), 1),
		PageSize:   queryInt(q.Get("page_size"), constants.DefaultPageSize),
	}
	if t, ok := queryTime(q.Get("date_start")); ok {
		filter.DateStart = &t
	}
	if t, ok := queryTime(q.Get("date_end")); ok {
		filter.DateEnd = &t
	}
	return filter
}

// MeteringServerReply 云主机计量单响应
type MeteringServerReply struct {
	ID               string    `json:"id"`
	ServerID         string    `json:"server_id"`
	Date             string    `json:"date"`
	ServiceID        string    `json:"service_id"`
	CPUHours         float64   `json:"cpu_hours"`
	RamHours         float64   `json:"ram_hours"`
	DiskHours        float64   `json:"disk_hours"`
	PublicIPHours    float64   `json:"public_ip_hours"`
	OriginalAmount   string    `json:"original_amount"`
	TradeAmount      string    `json:"trade_amount"`
	DailyStatementID string    `json:"daily_statement_id"`
	PayType          string    `json:"pay_type"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	VoID             string    `json:"vo_id"`
	VoName           string    `json:"vo_name"`
	OwnerType        string    `json:"owner_type"`
	CreationTime     time.Time `json:"creation_time"`
}

// ListServerMeterings 查询云主机计量单列表
func (s *MeteringService) ListServerMeterings(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	filter := meteringFilterFromQuery(ctx.Query())
	meterings, count, err := s.metering.ListServerMeterings(rctx, filter, r)
	if err != nil {
		return err
	}

	results := make([]*MeteringServerReply, 0, len(meterings))
	for _, m := range meterings {
		results = append(results, &MeteringServerReply{
			ID:               m.ID,
			ServerID:         m.ServerID,
			Date:             m.Date.Format("2006-01-02"),
			ServiceID:        m.ServiceID,
			CPUHours:         m.CPUHours,
			RamHours:         m.RamHours,
			DiskHours:        m.DiskHours,
			PublicIPHours:    m.PublicIPHours,
			OriginalAmount:   m.OriginalAmount.String(),
			TradeAmount:      m.TradeAmount.String(),
			DailyStatementID: m.DailyStatementID,
			PayType:          m.PayType,
			UserID:           m.UserID,
			Username:         m.Username,
			VoID:             m.VoID,
			VoName:           m.VoName,
			OwnerType:        m.OwnerType,
			CreationTime:     m.CreatedAt,
		})
	}
	return ctx.Result(200, &PageResult{
		Count:    count,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
		Results:  results,
	})
}

// AggregateReply 计量聚合响应
type AggregateReply struct {
	InstanceID     string `json:"instance_id,omitempty"`
	ServiceID      string `json:"service_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Username       string `json:"username,omitempty"`
	VoID           string `json:"vo_id,omitempty"`
	VoName         string `json:"vo_name,omitempty"`
	OriginalAmount string `json:"original_amount"`
	TradeAmount    string `json:"trade_amount"`
	Count          int64  `json:"count"`
}

func toAggregateReplies(aggs []*biz.MeteringAggregate) []*AggregateReply {
	results := make([]*AggregateReply, 0, len(aggs))
	for _, a := range aggs {
		results = append(results, &AggregateReply{
			InstanceID:     a.InstanceID,
			ServiceID:      a.ServiceID,
			UserID:         a.UserID,
			Username:       a.Username,
			VoID:           a.VoID,
			VoName:         a.VoName,
			OriginalAmount: a.OriginalAmount.String(),
			TradeAmount:    a.TradeAmount.String(),
			Count:          a.Count,
		})
	}
	return results
}

// aggregateByFromVar 聚合维度路由参数转换
func aggregateByFromVar(v string) (biz.AggregateBy, error) {
	switch v {
	case "server", "disk", "instance":
		return biz.AggregateByInstance, nil
	case "user":
		return biz.AggregateByUser, nil
	case "vo":
		return biz.AggregateByVo, nil
	case "service":
		return biz.AggregateByService, nil
	}
	return "", errors.InvalidArgument("无效的聚合维度")
}

// AggregateServerMeterings 云主机计量聚合
func (s *MeteringService) AggregateServerMeterings(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	by, err := aggregateByFromVar(ctx.Vars().Get("by"))
	if err != nil {
		return err
	}

	filter := meteringFilterFromQuery(ctx.Query())
	aggs, count, err := s.metering.AggregateServerMeterings(rctx, by, filter, r)
	if err != nil {
		return err
	}
	return ctx.Result(200, &PageResult{
		Count:    count,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
		Results:  toAggregateReplies(aggs),
	})
}

// MeteringDiskReply 云硬盘计量单响应
type MeteringDiskReply struct {
	ID               string    `json:"id"`
	DiskID           string    `json:"disk_id"`
	Date             string    `json:"date"`
	ServiceID        string    `json:"service_id"`
	SizeHours        float64   `json:"size_hours"`
	OriginalAmount   string    `json:"original_amount"`
	TradeAmount      string    `json:"trade_amount"`
	DailyStatementID string    `json:"daily_statement_id"`
	PayType          string    `json:"pay_type"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	VoID             string    `json:"vo_id"`
	VoName           string    `json:"vo_name"`
	OwnerType        string    `json:"owner_type"`
	CreationTime     time.Time `json:"creation_time"`
}

// ListDiskMeterings 查询云硬盘计量单列表
func (s *MeteringService) ListDiskMeterings(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	filter := meteringFilterFromQuery(ctx.Query())
	meterings, count, err := s.metering.ListDiskMeterings(rctx, filter, r)
	if err != nil {
		return err
	}

	results := make([]*MeteringDiskReply, 0, len(meterings))
	for _, m := range meterings {
		results = append(results, &MeteringDiskReply{
			ID:               m.ID,
			DiskID:           m.DiskID,
			Date:             m.Date.Format("2006-01-02"),
			ServiceID:        m.ServiceID,
			SizeHours:        m.SizeHours,
			OriginalAmount:   m.OriginalAmount.String(),
			TradeAmount:      m.TradeAmount.String(),
			DailyStatementID: m.DailyStatementID,
			PayType:          m.PayType,
			UserID:           m.UserID,
			Username:         m.Username,
			VoID:             m.VoID,
			VoName:           m.VoName,
			OwnerType:        m.OwnerType,
			CreationTime:     m.CreatedAt,
		})
	}
	return ctx.Result(200, &PageResult{
		Count:    count,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
		Results:  results,
	})
}

// AggregateDiskMeterings 云硬盘计量聚合
func (s *MeteringService) AggregateDiskMeterings(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	by, err := aggregateByFromVar(ctx.Vars().Get("by"))
	if err != nil {
		return err
	}

	filter := meteringFilterFromQuery(ctx.Query())
	aggs, count, err := s.metering.AggregateDiskMeterings(rctx, by, filter, r)
	if err != nil {
		return err
	}
	return ctx.Result(200, &PageResult{
		Count:    count,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
		Results:  toAggregateReplies(aggs),
	})
}

// MeteringStorageReply 对象存储计量单响应
type MeteringStorageReply struct {
	ID               string    `json:"id"`
	StorageBucketID  string    `json:"storage_bucket_id"`
	BucketName       string    `json:"bucket_name"`
	Date             string    `json:"date"`
	ServiceID        string    `json:"service_id"`
	StorageByteHours float64   `json:"storage_byte_hours"`
	DownstreamFlow   float64   `json:"downstream_flow"`
	GetRequestCount  int64     `json:"get_request_count"`
	PutRequestCount  int64     `json:"put_request_count"`
	OriginalAmount   string    `json:"original_amount"`
	TradeAmount      string    `json:"trade_amount"`
	DailyStatementID string    `json:"daily_statement_id"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	CreationTime     time.Time `json:"creation_time"`
}

// ListStorageMeterings 查询对象存储计量单列表
func (s *MeteringService) ListStorageMeterings(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	filter := meteringFilterFromQuery(ctx.Query())
	meterings, count, err := s.metering.ListStorageMeterings(rctx, filter, r)
	if err != nil {
		return err
	}

	results := make([]*MeteringStorageReply, 0, len(meterings))
	for _, m := range meterings {
		results = append(results, &MeteringStorageReply{
			ID:               m.ID,
			StorageBucketID:  m.StorageBucketID,
			BucketName:       m.BucketName,
			Date:             m.Date.Format("2006-01-02"),
			ServiceID:        m.ServiceID,
			StorageByteHours: m.StorageByteHours,
			DownstreamFlow:   m.DownstreamFlow,
			GetRequestCount:  m.GetRequestCount,
			PutRequestCount:  m.PutRequestCount,
			OriginalAmount:   m.OriginalAmount.String(),
			TradeAmount:      m.TradeAmount.String(),
			DailyStatementID: m.DailyStatementID,
			UserID:           m.UserID,
			Username:         m.Username,
			CreationTime:     m.CreatedAt,
		})
	}
	return ctx.Result(200, &PageResult{
		Count:    count,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
		Results:  results,
	})
}

// MeteringWebsiteReply 站点监控计量单响应
type MeteringWebsiteReply struct {
	ID               string    `json:"id"`
	WebsiteID        string    `json:"website_id"`
	WebsiteName      string    `json:"website_name"`
	Date             string    `json:"date"`
	Hours            float64   `json:"hours"`
	DetectionCount   int64     `json:"detection_count"`
	OriginalAmount   string    `json:"original_amount"`
	TradeAmount      string    `json:"trade_amount"`
	DailyStatementID string    `json:"daily_statement_id"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	CreationTime     time.Time `json:"creation_time"`
}

// ListWebsiteMeterings 查询站点监控计量单列表
func (s *MeteringService) ListWebsiteMeterings(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	filter := meteringFilterFromQuery(ctx.Query())
	meterings, count, err := s.metering.ListWebsiteMeterings(rctx, filter, r)
	if err != nil {
		return err
	}

	results := make([]*MeteringWebsiteReply, 0, len(meterings))
	for _, m := range meterings {
		results = append(results, &MeteringWebsiteReply{
			ID:               m.ID,
			WebsiteID:        m.WebsiteID,
			WebsiteName:      m.WebsiteName,
			Date:             m.Date.Format("2006-01-02"),
			Hours:            m.Hours,
			DetectionCount:   m.DetectionCount,
			OriginalAmount:   m.OriginalAmount.String(),
			TradeAmount:      m.TradeAmount.String(),
			DailyStatementID: m.DailyStatementID,
			UserID:           m.UserID,
			Username:         m.Username,
			CreationTime:     m.CreatedAt,
		})
	}
	return ctx.Result(200, &PageResult{
		Count:    count,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
		Results:  results,
	})
}

// StatementReply 日结算单响应
type StatementReply struct {
	ID               string    `json:"id"`
	Date             string    `json:"date"`
	ServiceID        string    `json:"service_id"`
	OriginalAmount   string    `json:"original_amount"`
	PayableAmount    string    `json:"payable_amount"`
	TradeAmount      string    `json:"trade_amount"`
	PaymentStatus    string    `json:"payment_status"`
	PaymentHistoryID string    `json:"payment_history_id"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	VoID             string    `json:"vo_id"`
	VoName           string    `json:"vo_name"`
	OwnerType        string    `json:"owner_type"`
	CreationTime     time.Time `json:"creation_time"`
}

func toStatementReply(s *biz.DailyStatement) *StatementReply {
	return &StatementReply{
		ID:               s.ID,
		Date:             s.Date.Format("2006-01-02"),
		ServiceID:        s.ServiceID,
		OriginalAmount:   s.OriginalAmount.String(),
		PayableAmount:    s.PayableAmount.String(),
		TradeAmount:      s.TradeAmount.String(),
		PaymentStatus:    s.PaymentStatus,
		PaymentHistoryID: s.PaymentHistoryID,
		UserID:           s.UserID,
		Username:         s.Username,
		VoID:             s.VoID,
		VoName:           s.VoName,
		OwnerType:        s.OwnerType,
		CreationTime:     s.CreatedAt,
	}
}

// statementKindFromVar 结算单资源种类路由参数转换
func statementKindFromVar(v string) (biz.StatementKind, error) {
	switch v {
	case "server":
		return biz.StatementKindServer, nil
	case "disk":
		return biz.StatementKindDisk, nil
	case "storage":
		return biz.StatementKindStorage, nil
	case "website":
		return biz.StatementKindWebsite, nil
	}
	return "", errors.InvalidArgument("无效的结算单资源种类")
}

// ListStatements 查询日结算单列表
func (s *MeteringService) ListStatements(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	kind, err := statementKindFromVar(ctx.Vars().Get("kind"))
	if err != nil {
		return err
	}

	q := ctx.Query()
	filter := &biz.StatementFilter{
		VoID:          q.Get("vo_id"),
		ServiceID:     q.Get("service_id"),
		PaymentStatus: q.Get("payment_status"),
		Page:          queryInt(q.Get("page"), 1),
		PageSize:      queryInt(q.Get("page_size"), constants.DefaultPageSize),
	}
	if t, ok := queryTime(q.Get("date_start")); ok {
		filter.DateStart = &t
	}
	if t, ok := queryTime(q.Get("date_end")); ok {
		filter.DateEnd = &t
	}

	statements, count, err := s.statement.ListStatements(rctx, kind, filter, r)
	if err != nil {
		return err
	}

	results := make([]*StatementReply, 0, len(statements))
	for _, st := range statements {
		results = append(results, toStatementReply(st))
	}
	return ctx.Result(200, &PageResult{
		Count:    count,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
		Results:  results,
	})
}

// GetStatement 查询日结算单详情
func (s *MeteringService) GetStatement(ctx khttp.Context) error {
	rctx := ctx.Request().Context()
	r, err := auth.RequireRequester(rctx)
	if err != nil {
		return err
	}

	kind, err := statementKindFromVar(ctx.Vars().Get("kind"))
	if err != nil {
		return err
	}

	st, err := s.statement.GetStatement(rctx, kind, ctx.Vars().Get("id"), r)
	if err != nil {
		return err
	}
	return ctx.Result(200, toStatementReply(st))
}
