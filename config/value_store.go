package config

import (
	"sync/atomic"
)

// valueStore 使用 atomic.Pointer 存储配置数据，读取无锁
type valueStore struct {
	value atomic.Pointer[map[string]any]
}

func newValueStore() *valueStore {
	s := &valueStore{}
	s.Store(make(map[string]any))
	return s
}

// Load 加载当前配置快照
func (s *valueStore) Load() map[string]any {
	if p := s.value.Load(); p != nil {
		return *p
	}
	return nil
}

// Store 原子替换配置数据
func (s *valueStore) Store(data map[string]any) {
	s.value.Store(&data)
}
