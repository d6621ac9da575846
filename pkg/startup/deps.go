package startup

import "context"

// FuncDependency adapts start/stop closures to StartupDependency so
// assembly code can register databases, caches, the registry load, and
// the consumer without one-off wrapper types.
type FuncDependency struct {
	Name      string
	Needs     []string
	StartFunc func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

func (d *FuncDependency) GetName() string {
	return d.Name
}

func (d *FuncDependency) DependsOn() []string {
	if d.Needs == nil {
		return []string{}
	}
	return d.Needs
}

func (d *FuncDependency) Start(ctx context.Context) error {
	if d.StartFunc == nil {
		return nil
	}
	return d.StartFunc(ctx)
}

func (d *FuncDependency) Stop(ctx context.Context) error {
	if d.StopFunc == nil {
		return nil
	}
	return d.StopFunc(ctx)
}
