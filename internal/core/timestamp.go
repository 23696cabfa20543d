package core

import (
	"context"

	"messagecore/pkg/domain"
)

// StampField sets a single field to the current time.
func StampField(name string) Hook {
	return NewHook("stamp:"+name, func(_ context.Context, hc HookContext) (HookContext, error) {
		if hc.Data == nil {
			hc.Data = domain.Record{}
		}
		hc.Data[name] = hc.Now()
		return hc, nil
	})
}

// StampFields sets every named field to one shared time value sampled once
// per call.
func StampFields(names ...string) Hook {
	fields := append([]string(nil), names...)
	label := "stamp:"
	for i, n := range fields {
		if i > 0 {
			label += ","
		}
		label += n
	}
	return NewHook(label, func(_ context.Context, hc HookContext) (HookContext, error) {
		if hc.Data == nil {
			hc.Data = domain.Record{}
		}
		now := hc.Now()
		for _, name := range fields {
			hc.Data[name] = now
		}
		return hc, nil
	})
}
