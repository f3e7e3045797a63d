package di

import (
	"context"
	"sync"
	"sync/atomic"
)

// beanKey 标识一个缓存槽位：id 注册的 Bean 用 id，内联 Bean 用所在节点，
// 匿名 Bean 用描述本身。三者只会设置一个。
type beanKey struct {
	id   string
	node *InnerDescription
	desc *BeanDescription
}

type built struct {
	val any
}

// call 一次顶层解析（或一次 Provider 调用）。
// 构建中的槽位记录自己的 call，等待中的 call 记录它在等的槽位，
// 二者组成等待图，阻塞前在图上查找回到自己的环。
type call struct {
	parent    *call          // Provider 调用时为注入它的解析
	waitingOn *instanceEntry // 受 waitMu 保护
}

// waitMu 保护所有槽位的 owner/label/done 以及 call.waitingOn
var waitMu sync.Mutex

// instanceEntry 一个缓存槽位：UNBUILT -> BUILT 只发生一次。
type instanceEntry struct {
	inst atomic.Pointer[built] // 已创建的实例（未创建为 nil）

	owner *call         // 正在构建的解析，受 waitMu 保护
	label string        // 构建中的 Bean，用于循环路径
	done  chan struct{} // owner 完成时关闭
}

// waitCycle 等待其他解析会形成环，path 从请求的 Bean 开始，到本次解析持有的槽位结束
type waitCycle struct {
	path []string
}

func (e *waitCycle) Error() string {
	return "di: waiting would close a dependency cycle"
}

// get 返回缓存的实例，没有则调用 create 创建并缓存。
// 失败不缓存，下次请求会重试。
func (e *instanceEntry) get(c *call, label string, create func() (any, error)) (any, error) {
	for {
		// 快速路径：已创建
		if b := e.inst.Load(); b != nil {
			return b.val, nil
		}

		waitMu.Lock()
		if b := e.inst.Load(); b != nil {
			waitMu.Unlock()
			return b.val, nil
		}
		if e.owner == nil {
			e.owner, e.label, e.done = c, label, make(chan struct{})
			waitMu.Unlock()
			return e.build(create)
		}
		if path := waitPath(c, e, label); path != nil {
			waitMu.Unlock()
			return nil, &waitCycle{path: path}
		}
		c.waitingOn = e
		done := e.done
		waitMu.Unlock()

		<-done

		waitMu.Lock()
		c.waitingOn = nil
		waitMu.Unlock()
	}
}

func (e *instanceEntry) build(create func() (any, error)) (any, error) {
	finished := false
	var (
		val any
		err error
	)
	// create panic 时也要释放槽位，否则等待者永远阻塞
	defer func() {
		waitMu.Lock()
		if finished && err == nil {
			e.inst.Store(&built{val: val})
		}
		e.owner = nil
		close(e.done)
		waitMu.Unlock()
	}()
	val, err = create()
	finished = true
	return val, err
}

// waitPath 沿等待图从 e 出发，回到 c（或 c 的上层解析）时返回经过的 Bean，否则返回 nil。
// 调用方持有 waitMu。
func waitPath(c *call, e *instanceEntry, label string) []string {
	path := []string{label}
	for owner := e.owner; owner != nil; {
		if owner.within(c) {
			return path
		}
		next := owner.waitingOn
		if next == nil || next.owner == nil {
			return nil
		}
		path = append(path, next.label)
		owner = next.owner
	}
	return nil
}

// within 报告 o 是否是 c 或 c 的上层解析
func (o *call) within(c *call) bool {
	for x := c; x != nil; x = x.parent {
		if x == o {
			return true
		}
	}
	return false
}

func (e *instanceEntry) isBuilt() bool {
	return e.inst.Load() != nil
}

// entryMap 按键懒创建槽位
type entryMap struct {
	entries sync.Map // key -> *instanceEntry
}

func (m *entryMap) entry(key any) *instanceEntry {
	if e, ok := m.entries.Load(key); ok {
		return e.(*instanceEntry)
	}
	e, _ := m.entries.LoadOrStore(key, &instanceEntry{})
	return e.(*instanceEntry)
}

func (m *entryMap) lookup(key any) (*instanceEntry, bool) {
	e, ok := m.entries.Load(key)
	if !ok {
		return nil, false
	}
	return e.(*instanceEntry), true
}

// threadScope 一个执行上下文的私有缓存，可被多个 BeanFactory 共用。
type threadScope struct {
	entries entryMap
}

// threadKey 区分不同 BeanFactory 在同一作用域中的槽位
type threadKey struct {
	factory *BeanFactory
	key     beanKey
}

type threadScopeKey struct{}

// WithThreadScope 返回带有新执行上下文的 ctx。
// 使用同一个 ctx（或其派生 ctx）请求的 thread Bean 共享实例，不同执行上下文互不共享。
func WithThreadScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, threadScopeKey{}, &threadScope{})
}

// HasThreadScope 报告 ctx 是否携带执行上下文
func HasThreadScope(ctx context.Context) bool {
	_, ok := threadScopeFrom(ctx)
	return ok
}

func threadScopeFrom(ctx context.Context) (*threadScope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(threadScopeKey{}).(*threadScope)
	return s, ok
}
