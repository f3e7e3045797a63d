package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

// Host Web 主机
type Host struct {
	engine    *gin.Engine
	server    *http.Server
	logger    logging.Logger
	container *di.Container
	beanIDs   []string

	mu    sync.Mutex
	ready chan struct{}
}

// Handler 返回 HTTP 处理器（测试中配合 httptest 使用）
func (h *Host) Handler() http.Handler {
	return h.engine
}

// Address 获取监听地址 (e.g., "127.0.0.1:50234")，Ready 关闭后有效
func (h *Host) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.server.Addr
}

// Ready 返回一个在开始监听后关闭的 channel
func (h *Host) Ready() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready == nil {
		h.ready = make(chan struct{})
	}
	return h.ready
}

// Start 启动 Web 主机，阻塞直到服务退出
func (h *Host) Start(ctx context.Context) error {
	// 1. 解析控制器 Bean 并注册路由
	if err := h.mapControllers(ctx); err != nil {
		return fmt.Errorf("web: failed to map controllers: %w", err)
	}

	// 2. 监听端口 (同步，确保端口可用)
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", h.server.Addr, err)
	}

	h.mu.Lock()
	h.server.Addr = ln.Addr().String()
	if h.ready == nil {
		h.ready = make(chan struct{})
	}
	close(h.ready)
	h.mu.Unlock()

	h.logger.Info("web host started", logging.Field{Key: "address", Value: ln.Addr().String()})

	// 3. 启动服务 (阻塞)
	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error("web host error", logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	return nil
}

// Stop 停止 Web 主机
func (h *Host) Stop(ctx context.Context) error {
	h.logger.Info("stopping web host")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("failed to shutdown web host gracefully",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}

	h.logger.Info("web host stopped")
	return nil
}

// mapControllers 从容器解析控制器 Bean 并注册路由
func (h *Host) mapControllers(ctx context.Context) error {
	if len(h.beanIDs) == 0 {
		return nil
	}
	if h.container == nil {
		return errors.New("controller beans configured without a container")
	}

	// thread 生命周期的控制器在启动作用域中解析
	ctx = di.WithThreadScope(ctx)
	for _, id := range h.beanIDs {
		instance, err := h.container.GetBeanByID(ctx, id, nil)
		if err != nil {
			return fmt.Errorf("failed to resolve controller %s: %w", id, err)
		}

		ctrl, ok := instance.(Controller)
		if !ok {
			return fmt.Errorf("bean %s (%T) does not implement web.Controller", id, instance)
		}

		ctrl.MountRoutes(h.engine)
		h.logger.Debug("mapped controller routes", logging.Field{Key: "controller", Value: id})
	}
	h.beanIDs = nil
	return nil
}
