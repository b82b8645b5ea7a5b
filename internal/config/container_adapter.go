package config

import (
	"strings"

	"github.com/garyjia/po-approval-route/internal/container"
)

// ToContainerConfig converts the file-based Config loaded by viper into the
// container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Approval: container.ApprovalConfig{
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(c.Approval.DefaultCurrency)),
			LogEvents:       c.Approval.LogEvents,
		},
	}
}
