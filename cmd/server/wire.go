//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/GOSC-CNIC/vms/internal/biz"
	"github.com/GOSC-CNIC/vms/internal/conf"
	"github.com/GOSC-CNIC/vms/internal/data"
	"github.com/GOSC-CNIC/vms/internal/server"
	"github.com/GOSC-CNIC/vms/internal/service"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		wire.FieldsOf(new(*conf.Bootstrap), "Metering"),
		server.ProviderSet,
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		newApp,
	))
}
