package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans/di"
)

// BeansController 只读的注册信息查看接口
//
//	GET /beans      所有注册
//	GET /beans/:id  单个具名 Bean，不存在时 404
type BeansController struct {
	factory *di.BeanFactory
}

// NewBeansController 创建查看接口
func NewBeansController(factory *di.BeanFactory) *BeansController {
	return &BeansController{factory: factory}
}

// MountRoutes 注册路由
func (c *BeansController) MountRoutes(router gin.IRouter) {
	group := router.Group("/beans")
	group.GET("", c.list)
	group.GET("/:id", c.get)
}

func (c *BeansController) list(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.factory.Beans())
}

func (c *BeansController) get(ctx *gin.Context) {
	id := ctx.Param("id")
	info, ok := c.factory.Bean(id)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": (&di.UnknownBeanIDError{ID: id}).Error()})
		return
	}
	ctx.JSON(http.StatusOK, info)
}
