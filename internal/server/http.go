package server

import (
	"encoding/json"
	stdhttp "net/http"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"

	"github.com/GOSC-CNIC/vms/internal/auth"
	"github.com/GOSC-CNIC/vms/internal/conf"
	"github.com/GOSC-CNIC/vms/internal/service"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Bootstrap, order *service.OrderService, metering *service.MeteringService, logger log.Logger,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.Filter(authFilter),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	srv := http.NewServer(opts...)

	// 订单
	orderRoute := srv.Route("/api/order")
	orderRoute.POST("", order.CreateOrder)
	orderRoute.GET("", order.ListOrders)
	orderRoute.POST("/renewal", order.CreateRenewOrder)
	orderRoute.POST("/scan", order.CreateScanOrder)
	orderRoute.GET("/{id}", order.GetOrder)
	orderRoute.DELETE("/{id}", order.DeleteOrder)
	orderRoute.POST("/{id}/cancel", order.CancelOrder)
	orderRoute.POST("/{id}/deliver", order.DeliverOrder)

	// 计量单
	meteringRoute := srv.Route("/api/metering")
	meteringRoute.GET("/server", metering.ListServerMeterings)
	meteringRoute.GET("/server/aggregation/{by}", metering.AggregateServerMeterings)
	meteringRoute.GET("/disk", metering.ListDiskMeterings)
	meteringRoute.GET("/disk/aggregation/{by}", metering.AggregateDiskMeterings)
	meteringRoute.GET("/storage", metering.ListStorageMeterings)
	meteringRoute.GET("/website", metering.ListWebsiteMeterings)

	// 日结算单
	statementRoute := srv.Route("/api/statement")
	statementRoute.GET("/{kind}", metering.ListStatements)
	statementRoute.GET("/{kind}/{id}", metering.GetStatement)

	// 健康检查端点
	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, map[string]string{"status": "ok", "service": "vms"})
	})

	return srv
}

// authFilter 从网关注入的请求头提取请求用户身份
func authFilter(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		userID := r.Header.Get("X-User-Id")
		if userID != "" {
			username := r.Header.Get("X-Username")
			role := auth.Role(r.Header.Get("X-Role"))
			if role == "" {
				role = auth.RoleUser
			}
			ctx := auth.WithRequester(r.Context(), userID, username, role)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    "InternalError",
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Reason
		response["message"] = se.Message
	} else if err != nil {
		response["message"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	return stdhttp.StatusInternalServerError
}
