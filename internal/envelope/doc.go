// Package envelope provides the message exchanged between modules on the bus.
//
// An Envelope carries the addressing metadata (house, sender, recipient,
// command, arguments, optional configuration schema) and a JSON payload:
//
//	{"request_id": 4711, "data": {"value": 21.5}}
//
// The request id correlates a request with its reply. It is generated when
// an envelope is created for sending and taken from the payload when an
// envelope is parsed from the wire. The data is kept as raw JSON and decoded
// lazily by the caller through Decode, DecodeKey or Get; accessors always
// return copies so callers cannot mutate the envelope through them.
//
// An envelope with IsNull set has no payload at all. Publishing it on a
// retained topic clears the retained value held by the broker.
package envelope
