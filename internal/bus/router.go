package bus

import (
	"errors"
	"fmt"

	"github.com/orttech/egeoffrey-sdk/internal/envelope"
	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// dispatch routes one inbound message. Caller holds eventMu.
func (c *Client) dispatch(topicName string, payload []byte, retained bool) {
	c.stats.received.Add(1)

	e, err := envelope.Parse(topicName, payload, retained)
	if err != nil {
		c.stats.droppedParse.Add(1)
		c.logError("invalid message received", "topic", topicName, "payload", string(payload), "error", err)
		return
	}
	if c.verbose {
		c.logDebug("received message", "message", e.Dump())
	}

	if e.HouseID != topic.Any && e.HouseID != c.houseID {
		c.stats.droppedScope.Add(1)
		c.logWarn("received message for the wrong house",
			"house_id", e.HouseID, "message", e.Dump(), "error", ErrScope)
		return
	}

	c.mu.Lock()
	pattern, matched := c.registry.firstMatch(topicName)
	configured := c.gate.configured
	c.mu.Unlock()

	if !matched {
		c.stats.droppedUnmatched.Add(1)
		return
	}

	switch {
	case e.Sender == topic.ConfigAuthority && e.Command == topic.CommandConf:
		c.handleConfiguration(e)
	case e.Command == topic.CommandPing:
		c.handlePing(e)
	case !configured:
		c.stats.droppedUnconfigured.Add(1)
	default:
		c.stats.dispatched.Add(1)
		if c.messages != nil {
			c.invoke("on_message", pattern, e, c.messages.OnMessage)
		}
	}
}

// maxHeldConfigurations bounds the optional configurations kept while the
// module waits for its mandatory ones.
const maxHeldConfigurations = 30

// handleConfiguration delivers a CONF message and, if accepted, updates the
// configuration gate. Optional configurations arriving before the module is
// configured are held and delivered after the last mandatory one, ahead of
// OnStart.
func (c *Client) handleConfiguration(e *envelope.Envelope) {
	c.stats.configurations.Add(1)

	c.mu.Lock()
	hold := !c.gate.configured && !c.gate.mandatory(e.Topic)
	c.mu.Unlock()
	if hold {
		c.holdConfiguration(e)
		return
	}

	if c.configurations != nil {
		if err := c.invoke("on_configuration", e.Topic, e, c.configurations.OnConfiguration); err != nil {
			return
		}
	}

	c.mu.Lock()
	satisfied, completed := c.gate.received(e.Topic)
	remaining := len(c.gate.waiting)
	c.mu.Unlock()

	if len(satisfied) == 0 {
		return
	}
	c.logDebug("received mandatory configuration", "topic", e.Topic, "remaining", remaining)
	if completed {
		c.logInfo("configuration completed")
		c.replayHeld()
		c.notify("on_start", c.onStart)
	}
}

func (c *Client) holdConfiguration(e *envelope.Envelope) {
	if len(c.held) >= maxHeldConfigurations {
		c.stats.droppedUnconfigured.Add(1)
		c.logWarn("too many configurations waiting, dropping", "topic", e.Topic)
		return
	}
	c.held = append(c.held, e)
	c.logDebug("holding configuration until configured", "topic", e.Topic, "held", len(c.held))
}

func (c *Client) replayHeld() {
	held := c.held
	c.held = nil
	if c.configurations == nil {
		return
	}
	for _, e := range held {
		_ = c.invoke("on_configuration", e.Topic, e, c.configurations.OnConfiguration)
	}
}

// handlePing answers a PING addressed to this module with a PONG. PINGs
// seen through an inspection listener are left alone; broadcast PINGs are
// answered.
func (c *Client) handlePing(e *envelope.Envelope) {
	if e.Recipient != c.fullName && e.Recipient != topic.Broadcast {
		return
	}
	pong := *e
	pong.Reply()
	pong.Command = topic.CommandPong
	pong.Sender = c.fullName
	if err := c.Send(&pong); err != nil {
		c.logWarn("unable to answer ping", "message", e.Dump(), "error", err)
		return
	}
	c.stats.pongs.Add(1)
}

// invoke runs a message callback, converting errors and panics to ErrHandler.
func (c *Client) invoke(callback, pattern string, e *envelope.Envelope, fn func(*envelope.Envelope) error) error {
	err := safeCall(fn, e)
	if err == nil {
		return nil
	}
	c.stats.handlerErrors.Add(1)
	if errors.Is(err, ErrConfigurationRejected) {
		c.logWarn("configuration rejected", "message", e.Dump(), "error", err)
	} else {
		c.logError("message handler failed",
			"callback", callback, "pattern", pattern, "message", e.Dump(), "error", err)
	}
	return fmt.Errorf("%w: %s: %w", ErrHandler, callback, err)
}

func safeCall(fn func(*envelope.Envelope) error, e *envelope.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(e)
}
