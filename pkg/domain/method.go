package domain

// Method names a service facade operation.
type Method string

// Service facade operations. MethodAll is only meaningful as a hook key.
const (
	MethodFind   Method = "find"
	MethodGet    Method = "get"
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
	MethodPatch  Method = "patch"
	MethodRemove Method = "remove"
	MethodAll    Method = "all"
)

// Event names a notification published after a successful mutation.
type Event string

// Mutation events.
const (
	EventCreated Event = "created"
	EventUpdated Event = "updated"
	EventPatched Event = "patched"
	EventRemoved Event = "removed"
)

// Events lists every event the facade emits.
var Events = []Event{EventCreated, EventUpdated, EventPatched, EventRemoved}

// Event returns the event emitted after m succeeds. Read-only methods report false.
func (m Method) Event() (Event, bool) {
	switch m {
	case MethodCreate:
		return EventCreated, true
	case MethodUpdate:
		return EventUpdated, true
	case MethodPatch:
		return EventPatched, true
	case MethodRemove:
		return EventRemoved, true
	default:
		return "", false
	}
}

// TargetsID reports whether m addresses a single record by id.
func (m Method) TargetsID() bool {
	switch m {
	case MethodGet, MethodUpdate, MethodPatch, MethodRemove:
		return true
	default:
		return false
	}
}
