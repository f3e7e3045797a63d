package di

import "fmt"

// edge 依赖图中的一条边
type edge struct {
	desc  *BeanDescription
	label string
}

// graphBuilder 对注册做静态检查：引用是否存在、类型引用是否唯一、是否有循环。
type graphBuilder struct {
	factory *BeanFactory
	labels  map[*BeanDescription]string

	visited        map[*BeanDescription]bool
	recursionStack map[*BeanDescription]bool
	path           []string
}

func newGraphBuilder(f *BeanFactory) *graphBuilder {
	g := &graphBuilder{
		factory:        f,
		labels:         make(map[*BeanDescription]string),
		visited:        make(map[*BeanDescription]bool),
		recursionStack: make(map[*BeanDescription]bool),
	}
	for _, id := range f.ids {
		if _, ok := g.labels[f.byID[id]]; !ok {
			g.labels[f.byID[id]] = id
		}
	}
	return g
}

// Validate 在不创建任何实例的情况下检查整个注册图。
// Provider 包装的依赖只检查存在性，不参与循环检测。
// 解析时同样会报告循环，Validate 让错误在启动时而不是第一次请求时出现。
func (f *BeanFactory) Validate() error {
	g := newGraphBuilder(f)

	for _, id := range f.ids {
		if err := g.visit(f.byID[id], id); err != nil {
			return err
		}
	}
	for _, desc := range f.anonymous {
		if err := g.visit(desc, g.label(desc)); err != nil {
			return err
		}
	}
	return nil
}

func (g *graphBuilder) label(desc *BeanDescription) string {
	if l, ok := g.labels[desc]; ok {
		return l
	}
	return "<" + desc.label() + ">"
}

// visit 基于 DFS 的循环检测
func (g *graphBuilder) visit(desc *BeanDescription, label string) error {
	if g.recursionStack[desc] {
		path := append(append([]string(nil), g.path...), label)
		return &CyclicDependencyError{Path: path}
	}
	if g.visited[desc] {
		return nil
	}

	g.visited[desc] = true
	g.recursionStack[desc] = true
	g.path = append(g.path, label)

	for _, dep := range descriptionDeps(desc) {
		edges, err := g.edges(dep, false)
		if err != nil {
			return fmt.Errorf("di: validating %s: %w", label, err)
		}
		for _, e := range edges {
			if err := g.visit(e.desc, e.label); err != nil {
				return err
			}
		}
	}

	g.path = g.path[:len(g.path)-1]
	g.recursionStack[desc] = false
	return nil
}

// edges 返回 dep 直接依赖的描述。deferred 为 true 时只检查存在性，不返回边。
func (g *graphBuilder) edges(dep Dependency, deferred bool) ([]edge, error) {
	var target edge
	switch d := dep.(type) {
	case *IDReference:
		desc, ok := g.factory.byID[d.ID]
		if !ok {
			return nil, &UnknownBeanIDError{ID: d.ID}
		}
		target = edge{desc: desc, label: d.ID}

	case *TypeReference:
		desc, err := g.factory.matchAnonymous(d.Type)
		if err != nil {
			return nil, err
		}
		target = edge{desc: desc, label: g.label(desc)}

	case *InnerDescription:
		target = edge{desc: d.Description, label: "<inline " + d.Description.label() + ">"}

	case *ProviderDependency:
		if err := g.checkDeferred(d.Inner, make(map[*BeanDescription]bool)); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, nil
	}

	if deferred {
		return nil, nil
	}
	return []edge{target}, nil
}

// checkDeferred 检查延迟依赖（及内联描述内部）引用的 Bean 是否存在
func (g *graphBuilder) checkDeferred(dep Dependency, seen map[*BeanDescription]bool) error {
	if _, err := g.edges(dep, true); err != nil {
		return err
	}
	inner, ok := dep.(*InnerDescription)
	if !ok || seen[inner.Description] {
		return nil
	}
	seen[inner.Description] = true
	for _, d := range descriptionDeps(inner.Description) {
		if err := g.checkDeferred(d, seen); err != nil {
			return err
		}
	}
	return nil
}

func descriptionDeps(desc *BeanDescription) []Dependency {
	var deps []Dependency
	for _, ctor := range desc.Constructors {
		deps = append(deps, ctor...)
	}
	deps = append(deps, desc.Fields...)
	deps = append(deps, desc.Setters...)
	return deps
}
