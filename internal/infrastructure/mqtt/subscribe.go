package mqtt

// Subscribe requests delivery of messages matching pattern.
//
// Messages are delivered to the bus.Events passed to Connect. Subscriptions
// are not tracked here: the bus replays them after every reconnection.
//
// Returns:
//   - error: ErrNotConnected while disconnected, or a validation error
func (c *Client) Subscribe(pattern string, qos byte) error {
	if pattern == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	// A nil callback routes messages to the default publish handler.
	token := c.getClient().Subscribe(pattern, qos, nil)
	c.watch("subscribe", pattern, ErrSubscribeFailed, token)
	return nil
}

// Unsubscribe removes a subscription.
//
// Any messages in flight may still be delivered.
func (c *Client) Unsubscribe(pattern string) error {
	if pattern == "" {
		return ErrInvalidTopic
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.getClient().Unsubscribe(pattern)
	c.watch("unsubscribe", pattern, ErrUnsubscribeFailed, token)
	return nil
}
