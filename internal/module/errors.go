package module

import "github.com/orttech/egeoffrey-sdk/internal/bus"

// ErrInvalidConfiguration is returned from OnConfiguration to reject a
// configuration. The module stays unconfigured until a valid one arrives.
var ErrInvalidConfiguration = bus.ErrConfigurationRejected
