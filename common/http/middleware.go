package http

import (
	"time"

	"okey/common/log"
)

// LoggerMiddleware 请求完成后记录耗时和状态码
func LoggerMiddleware() MiddlewareFunc {
	return func(c *Context) error {
		start := time.Now()
		c.Next()
		log.Debug("HTTP %s %s %d from %s in %v", c.Method(), c.Path(), c.Status(), c.ClientIP(), time.Since(start))
		return nil
	}
}
