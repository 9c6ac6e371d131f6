package handler

import (
	"github.com/gin-gonic/gin"

	"giua-registro/backend/internal/service"
	"giua-registro/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetActor 从 Gin 上下文中组装门控判定主体。
func MustGetActor(c *gin.Context) (*service.Actor, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return nil, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return nil, false
	}
	siteID, _ := c.Get("site_id")
	site, _ := siteID.(string)
	return &service.Actor{UserID: userID, Role: role, SiteID: site}, true
}
