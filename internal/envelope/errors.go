package envelope

import (
	"errors"

	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// Domain errors for envelope handling.
var (
	// ErrParse is returned when a topic or payload cannot be parsed.
	// It is the same sentinel as topic.ErrParse.
	ErrParse = topic.ErrParse

	// ErrValidation is returned when an envelope is missing fields required to send it.
	ErrValidation = errors.New("envelope: validation failed")

	// ErrNoData is returned when decoding an envelope without data.
	ErrNoData = errors.New("envelope: no data")

	// ErrKeyNotFound is returned when decoding a key absent from the data.
	ErrKeyNotFound = errors.New("envelope: key not found")
)
