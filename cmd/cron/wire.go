//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/conf"
	"github.com/GOSC-CNIC/vms/internal/data"
)

// wireApp 初始化应用
func wireApp(*conf.Bootstrap) (*CronApp, func(), error) {
	panic(wire.Build(
		wire.FieldsOf(new(*conf.Bootstrap), "Metering"),
		newLogger,
		data.ProviderSet,
		biz.ProviderSet,
		wire.Struct(new(CronApp), "*"),
	))
}
