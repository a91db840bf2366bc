package topic

import "errors"

// ErrParse is returned when a topic does not follow the bus topic layout.
var ErrParse = errors.New("topic: parse failed")
