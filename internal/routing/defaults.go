package routing

// defaultActions holds the built-in action filters per event type.
var defaultActions = map[string]map[string]bool{
	"issues": {
		"opened": true, "closed": true, "reopened": true, "edited": true,
		"labeled": true, "assigned": true, "comments": false,
	},
	"pull_request": {
		"opened": true, "closed": true, "reopened": true, "comments": false,
	},
	"release":   {"published": true},
	"star":      {"created": true, "deleted": true},
	"fork":      {"created": true},
	"create":    {"created": true},
	"delete":    {"deleted": true},
	"milestone": {"created": true, "opened": true, "closed": true},
	"ping":      {"ping": true},
	"workflow_run": {
		"completed": true, "requested": false,
	},
	"workflow_job": {
		"completed": true, "queued": false, "in_progress": false, "waiting": false,
	},
	"check_run": {
		"completed": true, "created": false, "requested": false, "rerequested": false,
	},
	"check_suite": {
		"completed": true, "requested": false, "rerequested": false,
	},
}

// DefaultActions returns a copy of the built-in action filter for eventType.
// Unknown event types get an empty map, which disables every action.
func DefaultActions(eventType string) map[string]bool {
	defaults := defaultActions[eventType]
	out := make(map[string]bool, len(defaults))
	for action, enabled := range defaults {
		out[action] = enabled
	}
	return out
}

// MergeActions overlays stored values on the defaults of eventType.
// Stored values win; keys missing from stored keep their default.
func MergeActions(eventType string, stored map[string]bool) map[string]bool {
	merged := DefaultActions(eventType)
	for action, enabled := range stored {
		merged[action] = enabled
	}
	return merged
}

// Known reports whether eventType has a routing table entry.
func Known(eventType string) bool {
	_, ok := defaultActions[eventType]
	return ok
}
