package di

import "github.com/gocrud/beans/logging"

// Option 配置 BeanFactory。
type Option func(*BeanFactory)

// WithLogger 设置调试日志记录器。默认不输出任何日志。
func WithLogger(logger logging.Logger) Option {
	return func(f *BeanFactory) {
		if logger != nil {
			f.logger = logger.WithCategory("di")
		}
	}
}
