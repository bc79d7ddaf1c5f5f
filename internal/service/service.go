package service

import (
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewOrderService,
	NewMeteringService,
)

// PageResult 列表分页响应
type PageResult struct {
	Count    int64       `json:"count"`
	PageNum  int         `json:"page_num"`
	PageSize int         `json:"page_size"`
	Results  interface{} `json:"results"`
}
