package core

import "messagecore/pkg/domain"

// Variant selects which caller-supplied fields survive create validation.
type Variant string

const (
	// VariantMemory keeps only the message text.
	VariantMemory Variant = "memory"
	// VariantDatabase also keeps the numeric counter column.
	VariantDatabase Variant = "database"
)

// DefaultPath is the service path reported to observers for the messages resource.
const DefaultPath = "messages"

// MessageHooks returns the hook table for the messages resource: create is
// validated and stamped with createdAt, patchedAt and updatedAt together,
// patch stamps patchedAt and update stamps updatedAt.
func MessageHooks(variant Variant) Hooks {
	var forward []string
	if variant == VariantDatabase {
		forward = append(forward, domain.FieldCounter)
	}
	return Hooks{
		Before: map[domain.Method][]Hook{
			domain.MethodCreate: {
				ValidateMessage(forward...),
				StampFields(domain.FieldCreatedAt, domain.FieldPatchedAt, domain.FieldUpdatedAt),
			},
			domain.MethodPatch:  {StampField(domain.FieldPatchedAt)},
			domain.MethodUpdate: {StampField(domain.FieldUpdatedAt)},
		},
		After: map[domain.Method][]Hook{},
	}
}
