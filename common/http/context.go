package http

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Context 封装 gin.Context，提供统一的请求/响应接口
type Context struct {
	ginCtx *gin.Context
}

func newContext(c *gin.Context) *Context {
	return &Context{ginCtx: c}
}

// Ctx 请求自带的 context，客户端断开时取消
func (c *Context) Ctx() context.Context {
	return c.ginCtx.Request.Context()
}

func (c *Context) GetParam(key string) string {
	return c.ginCtx.Param(key)
}

func (c *Context) GetQuery(key string) string {
	return c.ginCtx.Query(key)
}

func (c *Context) GetQueryWithDefault(key, defaultValue string) string {
	return c.ginCtx.DefaultQuery(key, defaultValue)
}

func (c *Context) GetHeader(key string) string {
	return c.ginCtx.GetHeader(key)
}

func (c *Context) JSON(code int, obj any) {
	c.ginCtx.JSON(code, obj)
}

func (c *Context) ClientIP() string {
	return c.ginCtx.ClientIP()
}

func (c *Context) Method() string {
	return c.ginCtx.Request.Method
}

func (c *Context) Path() string {
	return c.ginCtx.Request.URL.Path
}

func (c *Context) Status() int {
	return c.ginCtx.Writer.Status()
}

// Next 中间件里先执行后续处理
func (c *Context) Next() {
	c.ginCtx.Next()
}
