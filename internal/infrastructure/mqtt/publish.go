package mqtt

import (
	"fmt"

	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// maxPayloadSize caps a single eGeoffrey message at 1MB.
const maxPayloadSize = 1 << 20

// Publish hands a message to paho and returns without waiting for the
// broker acknowledgment, whose failure is only logged. An empty retained
// payload clears the retained value on the gateway.
//
// Returns ErrNotConnected while disconnected, and ErrInvalidTopic for an
// empty topic or one containing wildcards.
func (c *Client) Publish(name string, payload []byte, qos byte, retained bool) error {
	if name == "" || topic.IsPattern(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, name)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.getClient().Publish(name, qos, retained, payload)
	c.watch("publish", name, ErrPublishFailed, token)
	return nil
}
