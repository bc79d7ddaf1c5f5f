package conf

import (
	"fmt"
)

type Bootstrap struct {
	Server   *Server   `yaml:"server" json:"server"`
	Data     *Data     `yaml:"data" json:"data"`
	Client   *Client   `yaml:"client" json:"client"`
	Metering *Metering `yaml:"metering" json:"metering"`
	Log      *Log      `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver       string `yaml:"driver" json:"driver"`
		Source       string `yaml:"source" json:"source"`
		MaxIdleConns int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	} `yaml:"redis" json:"redis"`
}

type Client struct {
	WalletService    *WalletService    `yaml:"wallet_service" json:"wallet_service"`
	DelivererService *DelivererService `yaml:"deliverer_service" json:"deliverer_service"`
}

// WalletService 余额结算服务(钱包)
type WalletService struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DelivererService 订单资源交付服务(服务单元适配器入口)
type DelivererService struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Metering 计量计费相关配置
type Metering struct {
	// PayAppID 日结算单扣费时使用的钱包app id
	PayAppID string `yaml:"pay_app_id" json:"pay_app_id"`
}

type Log struct {
	Level string `yaml:"level" json:"level"`
}

// Validate 验证配置
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Client == nil {
		return fmt.Errorf("client configuration is required")
	}
	return nil
}
