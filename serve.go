package beans

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/web"
)

// shutdownTimeout 优雅关闭的超时时间
const shutdownTimeout = 5 * time.Second

// Serve 在 addr 上提供 /beans 查看接口并阻塞，
// 直到 ctx 取消或收到退出信号，然后优雅关闭。
func Serve(ctx context.Context, container *di.Container, addr string, opts ...web.BuilderOption) error {
	opts = append([]web.BuilderOption{
		web.WithAddr(addr),
		web.WithControllers(web.NewBeansController(container.Factory())),
	}, opts...)
	host := web.NewBuilder(opts...).Build(container)

	errCh := make(chan error, 1)
	go func() {
		errCh <- host.Start(ctx)
	}()

	// 阻塞并监听退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		// 启动失败或服务异常退出
		return err
	case <-quit:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := host.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
