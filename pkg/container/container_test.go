package container

import (
	"errors"
	"strings"
	"testing"
)

type greeter interface{ Greet() string }

type english struct{ name string }

func (e *english) Greet() string { return "hello " + e.name }

type service struct{ g greeter }

func TestProvideResolvesDependenciesAndInterfaces(t *testing.T) {
	c := New()
	calls := 0
	if err := c.Supply("tokyo"); err != nil {
		t.Fatal(err)
	}
	if err := c.Provide(func(name string) *english { calls++; return &english{name: name} }); err != nil {
		t.Fatal(err)
	}
	if err := c.Provide(func(g greeter) *service { return &service{g: g} }); err != nil {
		t.Fatal(err)
	}

	var s *service
	if err := c.Resolve(&s); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := s.g.Greet(); got != "hello tokyo" {
		t.Errorf("Greet = %q", got)
	}

	var again *english
	if err := c.Resolve(&again); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("constructor called %d times, want singleton", calls)
	}
}

func TestProvideRejectsDuplicatesAndBadSignatures(t *testing.T) {
	c := New()
	if err := c.Provide(func() int { return 1 }); err != nil {
		t.Fatal(err)
	}
	if err := c.Provide(func() int { return 2 }); err == nil {
		t.Error("expected duplicate provider error")
	}
	if err := c.Provide(42); err == nil {
		t.Error("expected non-function error")
	}
	if err := c.Provide(func() (int, string) { return 0, "" }); err == nil {
		t.Error("expected bad signature error")
	}
}

func TestConstructorErrorPropagates(t *testing.T) {
	c := New()
	boom := errors.New("no database")
	_ = c.Provide(func() (*english, error) { return nil, boom })

	var e *english
	err := c.Resolve(&e)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped constructor error, got %v", err)
	}
}

func TestCycleDetected(t *testing.T) {
	type a struct{}
	type b struct{}
	c := New()
	_ = c.Provide(func(*b) *a { return &a{} })
	_ = c.Provide(func(*a) *b { return &b{} })

	var x *a
	err := c.Resolve(&x)
	if err == nil || !strings.Contains(err.Error(), "cyclic") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestInvoke(t *testing.T) {
	c := New()
	_ = c.Supply(7)
	got := 0
	if err := c.Invoke(func(n int) error { got = n; return nil }); err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("got %d", got)
	}
	if err := c.Invoke(func(s string) {}); err == nil {
		t.Error("expected missing provider error")
	}
}
