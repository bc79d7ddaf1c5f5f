package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/conf"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// walletClient 余额结算服务HTTP客户端
type walletClient struct {
	addr   string
	client *http.Client
	log    *log.Helper
}

// NewWalletClient 创建余额结算服务客户端
func NewWalletClient(c *conf.Bootstrap, logger log.Logger) (biz.BalanceClient, error) {
	addr := ""
	if c != nil && c.Client != nil && c.Client.WalletService != nil {
		addr = c.Client.WalletService.Addr
	}
	if addr == "" {
		// 如果没有配置，返回空实现（优雅降级）
		return &emptyWalletClient{}, nil
	}

	return &walletClient{
		addr: addr,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.NewHelper(logger),
	}, nil
}

// balanceEnoughReply 余额查询响应
type balanceEnoughReply struct {
	Enough bool `json:"enough"`
}

// walletErrorReply 钱包服务错误响应
type walletErrorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *walletClient) hasEnoughBalance(ctx context.Context, path string, query url.Values) (bool, error) {
	u := c.addr + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Errorf("Failed to query wallet balance: %v", err)
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er walletErrorReply
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return false, fmt.Errorf("wallet service status %d: %s %s", resp.StatusCode, er.Code, er.Message)
	}

	var reply balanceEnoughReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return false, err
	}
	return reply.Enough, nil
}

// HasEnoughBalanceUser 用户余额是否足够支付指定金额
func (c *walletClient) HasEnoughBalanceUser(
	ctx context.Context, userID string, money decimal.Decimal, withCoupons bool, appServiceID string,
) (bool, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("money", money.String())
	q.Set("with_coupons", fmt.Sprintf("%t", withCoupons))
	q.Set("app_service_id", appServiceID)
	return c.hasEnoughBalance(ctx, "/api/trade/balance/user/enough", q)
}

// HasEnoughBalanceVo vo组余额是否足够支付指定金额
func (c *walletClient) HasEnoughBalanceVo(
	ctx context.Context, voID string, money decimal.Decimal, withCoupons bool, appServiceID string,
) (bool, error) {
	q := url.Values{}
	q.Set("vo_id", voID)
	q.Set("money", money.String())
	q.Set("with_coupons", fmt.Sprintf("%t", withCoupons))
	q.Set("app_service_id", appServiceID)
	return c.hasEnoughBalance(ctx, "/api/trade/balance/vo/enough", q)
}

// payStatementBody 结算单扣费请求体
type payStatementBody struct {
	AppID        string `json:"app_id"`
	AppServiceID string `json:"app_service_id"`
	OrderID      string `json:"order_id"` // 结算单id作为交易订单号
	Subject      string `json:"subject"`
	Remark       string `json:"remark"`
	Amount       string `json:"amounts"`
	OwnerID      string `json:"owner_id"`
	OwnerType    string `json:"owner_type"`
}

// payStatementReply 结算单扣费响应
type payStatementReply struct {
	PaymentHistoryID string `json:"payment_history_id"`
	BalanceAmount    string `json:"coin_amount"`
	CouponAmount     string `json:"coupon_amount"`
}

// PayDailyStatement 从归属人的余额/资源券账户扣除一张日结算单的金额
func (c *walletClient) PayDailyStatement(ctx context.Context, req *biz.PayStatementRequest) (*biz.PayStatementResult, error) {
	body, err := json.Marshal(&payStatementBody{
		AppID:        req.AppID,
		AppServiceID: req.AppServiceID,
		OrderID:      req.StatementID,
		Subject:      req.Subject,
		Remark:       req.Remark,
		Amount:       req.Amount.String(),
		OwnerID:      req.OwnerID,
		OwnerType:    req.OwnerType,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.addr+"/api/trade/charge", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Errorf("Failed to pay statement %s: %v", req.StatementID, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er walletErrorReply
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Code == errors.ReasonBalanceNotEnough {
			return nil, errors.BalanceNotEnough(er.Message)
		}
		return nil, fmt.Errorf("wallet service status %d: %s %s", resp.StatusCode, er.Code, er.Message)
	}

	var reply payStatementReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, err
	}

	balanceAmount, _ := decimal.NewFromString(reply.BalanceAmount)
	couponAmount, _ := decimal.NewFromString(reply.CouponAmount)
	return &biz.PayStatementResult{
		PaymentHistoryID: reply.PaymentHistoryID,
		BalanceAmount:    balanceAmount,
		CouponAmount:     couponAmount,
	}, nil
}

// emptyWalletClient 空的余额结算服务客户端实现（优雅降级）。
// 余额查询一律放行，扣费直接报错，避免未配置钱包时静默吞掉账单
type emptyWalletClient struct{}

func (e *emptyWalletClient) HasEnoughBalanceUser(
	ctx context.Context, userID string, money decimal.Decimal, withCoupons bool, appServiceID string,
) (bool, error) {
	return true, nil
}

func (e *emptyWalletClient) HasEnoughBalanceVo(
	ctx context.Context, voID string, money decimal.Decimal, withCoupons bool, appServiceID string,
) (bool, error) {
	return true, nil
}

func (e *emptyWalletClient) PayDailyStatement(ctx context.Context, req *biz.PayStatementRequest) (*biz.PayStatementResult, error) {
	return nil, errors.Conflict(errors.ReasonConflict, "余额结算服务未配置")
}
