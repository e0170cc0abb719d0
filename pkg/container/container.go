package container

import (
	"fmt"
	"reflect"
	"sync"
)

// Container wires the director's components by constructor injection.
// Constructors return T or (T, error); their parameters are resolved from
// other registered constructors. Interfaces resolve to the first provider
// whose type implements them.
type Container struct {
	mu    sync.Mutex
	prov  map[reflect.Type]reflect.Value
	built map[reflect.Type]reflect.Value
	order []reflect.Type
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func New() *Container {
	return &Container{prov: map[reflect.Type]reflect.Value{}, built: map[reflect.Type]reflect.Value{}}
}

// Provide registers a singleton constructor.
func (c *Container) Provide(constructor interface{}) error {
	fn := reflect.ValueOf(constructor)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("container: constructor must be a function, got %T", constructor)
	}
	ft := fn.Type()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return fmt.Errorf("container: constructor must return (T) or (T, error)")
	}

	out := ft.Out(0)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.prov[out]; dup {
		return fmt.Errorf("container: provider already exists for %v", out)
	}
	c.prov[out] = fn
	c.order = append(c.order, out)
	return nil
}

// Supply registers an already-built value.
func (c *Container) Supply(v interface{}) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return fmt.Errorf("container: cannot supply nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.built[rv.Type()]; dup {
		return fmt.Errorf("container: value already supplied for %v", rv.Type())
	}
	c.built[rv.Type()] = rv
	c.order = append(c.order, rv.Type())
	return nil
}

// Resolve fills target, which must be a non-nil pointer.
//
//	var g *gate.Gate
//	err := c.Resolve(&g)
func (c *Container) Resolve(target interface{}) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("container: target must be a non-nil pointer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.get(ptr.Elem().Type(), map[reflect.Type]bool{})
	if err != nil {
		return err
	}
	ptr.Elem().Set(v)
	return nil
}

// Invoke calls fn with resolved arguments and returns its trailing error, if any.
func (c *Container) Invoke(fn interface{}) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("container: Invoke requires a function")
	}
	ft := v.Type()
	args := make([]reflect.Value, ft.NumIn())
	c.mu.Lock()
	for i := range args {
		a, err := c.get(ft.In(i), map[reflect.Type]bool{})
		if err != nil {
			c.mu.Unlock()
			return err
		}
		args[i] = a
	}
	c.mu.Unlock()

	outs := v.Call(args)
	if n := len(outs); n > 0 && ft.Out(n-1) == errorType && !outs[n-1].IsNil() {
		return outs[n-1].Interface().(error)
	}
	return nil
}

// get must be called with c.mu held.
func (c *Container) get(t reflect.Type, visiting map[reflect.Type]bool) (reflect.Value, error) {
	key, err := c.lookup(t)
	if err != nil {
		return reflect.Value{}, err
	}
	if v, ok := c.built[key]; ok {
		return v, nil
	}
	if visiting[key] {
		return reflect.Value{}, fmt.Errorf("container: cyclic dependency for %v", key)
	}
	visiting[key] = true
	defer delete(visiting, key)

	fn := c.prov[key]
	ft := fn.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		a, err := c.get(ft.In(i), visiting)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%v: %w", key, err)
		}
		args[i] = a
	}
	outs := fn.Call(args)
	if len(outs) == 2 && !outs[1].IsNil() {
		return reflect.Value{}, fmt.Errorf("container: building %v: %w", key, outs[1].Interface().(error))
	}
	c.built[key] = outs[0]
	return outs[0], nil
}

// lookup maps a requested type onto the registered type that serves it.
func (c *Container) lookup(t reflect.Type) (reflect.Type, error) {
	if _, ok := c.built[t]; ok {
		return t, nil
	}
	if _, ok := c.prov[t]; ok {
		return t, nil
	}
	if t.Kind() == reflect.Interface {
		for _, rt := range c.order {
			if rt.Implements(t) {
				return rt, nil
			}
		}
	}
	return nil, fmt.Errorf("container: no provider for %v", t)
}
