package bus

import (
	"slices"

	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// gate tracks the configuration topics a module must receive before it is
// considered configured. A module without mandatory topics is configured.
// Not safe for concurrent use; the client guards it.
type gate struct {
	waiting    []string
	configured bool
}

func newGate() gate {
	return gate{configured: true}
}

// addMandatory adds pattern to the wait set and marks the module unconfigured.
func (g *gate) addMandatory(pattern string) {
	if !slices.Contains(g.waiting, pattern) {
		g.waiting = append(g.waiting, pattern)
	}
	g.configured = false
}

// mandatory reports whether topicName satisfies a pattern still waited on.
func (g *gate) mandatory(topicName string) bool {
	return slices.ContainsFunc(g.waiting, func(pattern string) bool {
		return topic.Matches(pattern, topicName)
	})
}

// received removes every waiting pattern matching topicName. It returns the
// patterns satisfied and whether this call completed the configuration.
func (g *gate) received(topicName string) (satisfied []string, completed bool) {
	if len(g.waiting) == 0 {
		return nil, false
	}

	g.waiting = slices.DeleteFunc(g.waiting, func(pattern string) bool {
		if topic.Matches(pattern, topicName) {
			satisfied = append(satisfied, pattern)
			return true
		}
		return false
	})

	if len(satisfied) > 0 && len(g.waiting) == 0 && !g.configured {
		g.configured = true
		return satisfied, true
	}
	return satisfied, false
}
