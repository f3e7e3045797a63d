package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

// Controller 简单的控制器接口标记
type Controller interface {
	// MountRoutes 注册路由
	MountRoutes(router gin.IRouter)
}

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	logger      logging.Logger
	addr        string
	engine      *gin.Engine
	controllers []Controller
	beanIDs     []string // 启动时从容器解析的控制器 Bean
}

// BuilderOption 用于配置 Web Builder
type BuilderOption func(*Builder)

// WithAddr 设置监听地址
func WithAddr(addr string) BuilderOption {
	return func(b *Builder) {
		b.UseAddr(addr)
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger logging.Logger) BuilderOption {
	return func(b *Builder) {
		b.UseLogger(logger)
	}
}

// WithControllers 添加控制器
func WithControllers(controllers ...Controller) BuilderOption {
	return func(b *Builder) {
		b.AddControllers(controllers...)
	}
}

// NewBuilder 创建 Web 构建器
func NewBuilder(opts ...BuilderOption) *Builder {
	// 设置 Gin 为发布模式（默认）
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	// 默认中间件：恢复 panic，并为每个请求打开一个 thread 作用域
	engine.Use(gin.Recovery(), ThreadScope())

	b := &Builder{
		addr:   ":8080",
		engine: engine,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// UseLogger 设置日志记录器
func (b *Builder) UseLogger(logger logging.Logger) *Builder {
	if logger != nil {
		b.logger = logger.WithCategory("web")
	}
	return b
}

// UseAddr 设置监听地址，例如 ":8080" 或 "127.0.0.1:0"
func (b *Builder) UseAddr(addr string) *Builder {
	b.addr = addr
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// AddControllers 注册控制器实例，Build 时挂载路由
func (b *Builder) AddControllers(controllers ...Controller) *Builder {
	b.controllers = append(b.controllers, controllers...)
	return b
}

// AddControllerBeans 注册控制器 Bean 的 id，Host 启动时从容器解析。
// Bean 必须实现 Controller。
func (b *Builder) AddControllerBeans(ids ...string) *Builder {
	b.beanIDs = append(b.beanIDs, ids...)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// Build 构建 Web 主机，container 用于解析控制器 Bean
func (b *Builder) Build(container *di.Container) *Host {
	for _, ctrl := range b.controllers {
		ctrl.MountRoutes(b.engine)
	}

	return &Host{
		engine:    b.engine,
		container: container,
		beanIDs:   append([]string(nil), b.beanIDs...),
		server: &http.Server{
			Addr:    b.addr,
			Handler: b.engine,
		},
		logger: b.logger,
	}
}
