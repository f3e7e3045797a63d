package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/gocrud/beans/logging"
	"github.com/robfig/cron/v3"
)

// RefreshOptions 定时刷新选项
type RefreshOptions struct {
	// Spec cron 表达式，例如 "@every 30s" 或 "*/5 * * * *"
	Spec string
	// EnableSeconds 是否启用秒级精度（默认分钟级）
	EnableSeconds bool
	// Location 时区，默认 UTC
	Location *time.Location
	// Logger 为空时不输出日志
	Logger logging.Logger
	// OnChange 刷新后数据发生变化时调用
	OnChange func(Configuration)
}

// Refresher 按 cron 计划重新加载配置，适合 etcd、redis、数据库等远端配置源
type Refresher struct {
	cfg      Configuration
	cron     *cron.Cron
	logger   logging.Logger
	onChange func(Configuration)

	mu      sync.Mutex
	running bool
}

// NewRefresher 创建刷新器，Start 后才开始调度
func NewRefresher(cfg Configuration, opts RefreshOptions) (*Refresher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config: refresher requires a configuration")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	location := opts.Location
	if location == nil {
		location = time.UTC
	}

	cronOpts := []cron.Option{
		cron.WithLocation(location),
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	if opts.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	r := &Refresher{
		cfg:      cfg,
		cron:     cron.New(cronOpts...),
		logger:   logger.WithCategory("config"),
		onChange: opts.OnChange,
	}

	if _, err := r.cron.AddFunc(opts.Spec, r.run); err != nil {
		return nil, fmt.Errorf("config: invalid refresh spec %q: %w", opts.Spec, err)
	}
	return r, nil
}

// Refresh 立即重新加载，返回数据是否发生变化
func (r *Refresher) Refresh() (bool, error) {
	before := r.cfg.GetAll()
	if err := r.cfg.Reload(); err != nil {
		return false, err
	}
	if reflect.DeepEqual(before, r.cfg.GetAll()) {
		return false, nil
	}
	if r.onChange != nil {
		r.onChange(r.cfg)
	}
	return true, nil
}

func (r *Refresher) run() {
	changed, err := r.Refresh()
	if err != nil {
		r.logger.Error("configuration refresh failed", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	if changed {
		r.logger.Info("configuration reloaded")
	}
}

// Start 开始调度，重复调用无效
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.cron.Start()
}

// Stop 停止调度，等待正在执行的刷新完成或 ctx 到期
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 把 cron 库的日志转到 logging.Logger
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Field{Key: "error", Value: err.Error()})
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprintf("%v", keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
