package handler

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// HealthCheck 单个依赖的探活函数
type HealthCheck func(ctx context.Context) error

// HealthHandler 汇总各依赖的连通性
type HealthHandler struct {
	version string
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string, checks map[string]func(ctx context.Context) error) *HealthHandler {
	h := &HealthHandler{version: version, checks: make(map[string]HealthCheck, len(checks)), timeout: 2 * time.Second}
	for name, fn := range checks {
		h.checks[name] = fn
	}
	return h
}

// HandleHealth 所有依赖可用时返回 OK，否则返回 DEGRADED 并列出失败原因。
// 只有 MySQL 不可用时返回 503。
// GET /api/v1/health
func (h *HealthHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := "OK"
	code := consts.StatusOK
	services := utils.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			services[name] = err.Error()
			status = "DEGRADED"
			if name == "mysql" {
				code = consts.StatusServiceUnavailable
			}
			continue
		}
		services[name] = "up"
	}
	c.JSON(code, utils.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"services":  services,
	})
}
