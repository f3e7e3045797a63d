package web

import (
	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans/di"
)

// ThreadScope 为每个请求打开一个 thread 作用域，
// 同一请求内 thread 生命周期的 Bean 只创建一次
func ThreadScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !di.HasThreadScope(c.Request.Context()) {
			c.Request = c.Request.WithContext(di.WithThreadScope(c.Request.Context()))
		}
		c.Next()
	}
}
