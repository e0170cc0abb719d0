package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := NewBiz("refill.Run", "too few approved", nil)
	wrapped := fmt.Errorf("pipeline: %w", base)

	if !Is(wrapped, ErrBiz) {
		t.Fatalf("expected wrapped biz error to match ErrBiz")
	}
	if Is(wrapped, ErrExternal) {
		t.Errorf("biz error must not match ErrExternal")
	}
}

func TestIsFallsBackToSentinel(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := NewExternal("scraper.Lookup", "maps", "fetch failed", sentinel)

	if !Is(err, sentinel) {
		t.Fatalf("expected sentinel to be found in chain")
	}
	if !Is(err, ErrExternal) {
		t.Fatalf("expected external kind")
	}
}

func TestErrorStrings(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewValidation("config.Validate", "bad port", nil), "validation: config.Validate: bad port"},
		{NewDB("database.Save", "insert", errors.New("boom")), "db: database.Save: insert: boom"},
		{NewExternal("proposal.Propose", "openai", "call failed", nil), "openai: proposal.Propose: call failed"},
		{NewExternal("x", "", "y", nil), "external: x: y"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}
