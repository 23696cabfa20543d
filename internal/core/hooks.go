package core

import (
	"context"
	"time"

	"messagecore/pkg/domain"
)

// HookContext is the transient per-call state threaded through the hook chain.
// Before hooks see the caller's input in Data (and ID for id-addressed
// methods, Query for find). After hooks additionally see Result or Results.
type HookContext struct {
	CallID    string
	Path      string
	Method    domain.Method
	ID        int64
	HasID     bool
	Data      domain.Record
	Query     domain.Query
	Result    domain.Record
	Results   []domain.Record
	StartedAt time.Time

	clock Clock
}

// Now returns the current time from the service clock.
func (hc HookContext) Now() time.Time {
	if hc.clock == nil {
		return time.Now().UTC()
	}
	return hc.clock.Now()
}

// HookFunc transforms the call context. Returning a non-nil error aborts the
// remaining hooks and the store call; the error reaches the caller unchanged.
type HookFunc func(ctx context.Context, hc HookContext) (HookContext, error)

// Hook is a named pipeline step.
type Hook struct {
	Name string
	Run  HookFunc
}

// NewHook pairs a name with a hook function.
func NewHook(name string, fn HookFunc) Hook {
	return Hook{Name: name, Run: fn}
}

// Hooks holds the ordered before and after steps per method. The MethodAll key
// applies to every method and runs after the method-specific steps.
type Hooks struct {
	Before map[domain.Method][]Hook
	After  map[domain.Method][]Hook
}

func (h Hooks) clone() Hooks {
	out := Hooks{
		Before: make(map[domain.Method][]Hook, len(h.Before)),
		After:  make(map[domain.Method][]Hook, len(h.After)),
	}
	for m, steps := range h.Before {
		out.Before[m] = compactHooks(steps)
	}
	for m, steps := range h.After {
		out.After[m] = compactHooks(steps)
	}
	return out
}

func compactHooks(in []Hook) []Hook {
	out := make([]Hook, 0, len(in))
	for _, hook := range in {
		if hook.Run != nil {
			out = append(out, hook)
		}
	}
	return out
}

func (h Hooks) before(m domain.Method) []Hook {
	return chain(h.Before, m)
}

func (h Hooks) after(m domain.Method) []Hook {
	return chain(h.After, m)
}

func chain(table map[domain.Method][]Hook, m domain.Method) []Hook {
	specific, all := table[m], table[domain.MethodAll]
	if len(all) == 0 {
		return specific
	}
	out := make([]Hook, 0, len(specific)+len(all))
	out = append(out, specific...)
	return append(out, all...)
}

// runHooks applies steps in order and stops at the first failure. The name of
// the failing hook is returned alongside the error.
func runHooks(ctx context.Context, steps []Hook, hc HookContext) (HookContext, string, error) {
	for _, step := range steps {
		next, err := step.Run(ctx, hc)
		if err != nil {
			return hc, step.Name, err
		}
		hc = next
	}
	return hc, "", nil
}
