package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "bosshunter"

// Control actions accepted under {prefix}/control/.
const (
	ActionStart     = "start"
	ActionStop      = "stop"
	ActionThreshold = "threshold"
)

// Topics builds the service's topic names under one prefix.
//
//	topics := mqtt.NewTopics("bosshunter")
//	topics.State()             // "bosshunter/state"
//	topics.Control("stop")     // "bosshunter/control/stop"
type Topics struct {
	prefix string
}

// NewTopics returns builders for prefix. Trailing slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root topic segment.
func (t Topics) Prefix() string {
	return t.prefix
}

// SystemStatus carries the retained online/offline message and the LWT.
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// State carries the retained current automaton state.
func (t Topics) State() string {
	return t.prefix + "/state"
}

// Event carries run events as they happen.
func (t Topics) Event() string {
	return t.prefix + "/event"
}

// Control returns the command topic for action.
func (t Topics) Control(action string) string {
	return t.prefix + "/control/" + action
}

// AllControl matches every command topic.
func (t Topics) AllControl() string {
	return t.prefix + "/control/+"
}

// ControlAction extracts the action from a command topic.
func (t Topics) ControlAction(topic string) (string, bool) {
	action, ok := strings.CutPrefix(topic, t.prefix+"/control/")
	if !ok || action == "" || strings.Contains(action, "/") {
		return "", false
	}
	return action, true
}
