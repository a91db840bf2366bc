package topic

import "strings"

// Matches reports whether topic is matched by pattern.
//
// Matching follows the broker's subscription semantics so that local
// re-matching during dispatch agrees with what the broker delivered:
//   - + (and *) match exactly one segment
//   - # matches one or more trailing segments and is only valid last
//   - anything else matches literally
//
// Matching is anchored at the first segment but a pattern that is fully
// consumed matches even when the topic has further segments.
func Matches(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}

	patternSegs := strings.Split(pattern, Separator)
	topicSegs := strings.Split(topic, Separator)

	for i, seg := range patternSegs {
		if seg == MultiLevel {
			return i == len(patternSegs)-1 && len(topicSegs) > i
		}
		if i >= len(topicSegs) {
			return false
		}
		if seg == SingleLevel || seg == Any {
			continue
		}
		if seg != topicSegs[i] {
			return false
		}
	}

	return true
}
