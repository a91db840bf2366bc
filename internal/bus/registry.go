package bus

import (
	"slices"

	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// registry tracks subscription patterns in registration order.
// Not safe for concurrent use; the client guards it.
type registry struct {
	// pending holds patterns requested while disconnected.
	pending []string

	// active holds patterns subscribed on the current or last connection.
	active []string
}

// contains reports whether pattern is pending or active.
func (r *registry) contains(pattern string) bool {
	return slices.Contains(r.active, pattern) || slices.Contains(r.pending, pattern)
}

func (r *registry) addPending(pattern string) {
	r.pending = append(r.pending, pattern)
}

func (r *registry) addActive(pattern string) {
	r.active = append(r.active, pattern)
}

// activate moves pending patterns to the active list and returns every
// pattern that must be subscribed on a fresh connection, in registration order.
func (r *registry) activate() []string {
	r.active = append(r.active, r.pending...)
	r.pending = nil
	return slices.Clone(r.active)
}

// remove drops pattern from both lists and reports whether it was active.
func (r *registry) remove(pattern string) bool {
	wasActive := slices.Contains(r.active, pattern)
	r.active = slices.DeleteFunc(r.active, func(p string) bool { return p == pattern })
	r.pending = slices.DeleteFunc(r.pending, func(p string) bool { return p == pattern })
	return wasActive
}

// firstMatch returns the first active pattern matching topicName.
func (r *registry) firstMatch(topicName string) (string, bool) {
	for _, pattern := range r.active {
		if topic.Matches(pattern, topicName) {
			return pattern, true
		}
	}
	return "", false
}
