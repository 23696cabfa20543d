package core

import (
	"context"
	"strings"

	"messagecore/pkg/domain"
)

// ValidateMessage rejects create payloads without a usable text field and
// replaces the payload with an allow-listed copy: text plus any forwarded
// fields present in the input. A forwarded counter must be an integer or an
// integral string.
func ValidateMessage(forward ...string) Hook {
	allowed := append([]string(nil), forward...)
	return NewHook("validate-message", func(_ context.Context, hc HookContext) (HookContext, error) {
		raw, present := hc.Data[domain.FieldText]
		if !present || raw == nil {
			return hc, domain.InvalidInputError{Field: domain.FieldText, Reason: "Message text must exist"}
		}
		text, ok := raw.(string)
		if !ok || strings.TrimSpace(text) == "" {
			return hc, domain.InvalidInputError{Field: domain.FieldText, Reason: "Message text is invalid"}
		}
		clean := domain.Record{domain.FieldText: text}
		for _, field := range allowed {
			v, ok := hc.Data[field]
			if !ok || v == nil {
				continue
			}
			if field == domain.FieldCounter {
				n, ok := domain.ParseInt64(v)
				if !ok {
					return hc, domain.InvalidInputError{Field: domain.FieldCounter, Reason: "must be an integer"}
				}
				v = n
			}
			clean[field] = v
		}
		hc.Data = clean
		return hc, nil
	})
}
