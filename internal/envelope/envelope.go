package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// maxRequestID bounds generated request ids. Ids are not globally unique.
const maxRequestID = 100000

var (
	emptyObject = json.RawMessage(`{}`)
	jsonNull    = []byte("null")
)

// Envelope is one addressed unit of communication on the bus.
type Envelope struct {
	// Topic is the topic an inbound envelope was received on. Empty for
	// envelopes created locally and cleared by Reply and Forward.
	Topic string

	HouseID   string
	Sender    string
	Recipient string
	Command   string
	Args      string

	// ConfigSchema is the configuration schema version. Only meaningful for
	// configuration commands; it travels as the first argument segment.
	ConfigSchema *int

	// Retain asks the broker to keep the message for future subscribers.
	Retain bool

	// IsNull marks an envelope without payload.
	IsNull bool

	requestID int
	data      json.RawMessage
}

// wirePayload is the JSON body carried by every non-null message.
type wirePayload struct {
	RequestID *int            `json:"request_id"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// New returns an empty envelope with a fresh request id.
func New() *Envelope {
	e := &Envelope{}
	e.Reset()
	return e
}

// NewFrom returns an empty envelope sent by sender within houseID.
func NewFrom(houseID, sender string) *Envelope {
	e := New()
	e.HouseID = houseID
	e.Sender = sender
	return e
}

// Parse rebuilds an envelope from a topic and payload received from the bus.
// The request id is taken from the payload. An empty payload yields a null
// envelope.
func Parse(topicName string, payload []byte, retained bool) (*Envelope, error) {
	addr, err := topic.Parse(topicName)
	if err != nil {
		return nil, err
	}

	e := &Envelope{
		Topic:        topicName,
		HouseID:      addr.HouseID,
		Sender:       addr.Sender,
		Recipient:    addr.Recipient,
		Command:      addr.Command,
		Args:         addr.Args,
		ConfigSchema: addr.ConfigSchema,
		Retain:       retained,
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		e.IsNull = true
		return e, nil
	}

	var body wirePayload
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, fmt.Errorf("%w: payload in an invalid JSON format: %w", ErrParse, err)
	}
	if body.RequestID != nil {
		e.requestID = *body.RequestID
	}
	if body.Data != nil {
		e.data = body.Data
	}

	return e, nil
}

// Reset clears every field and assigns a new request id.
func (e *Envelope) Reset() {
	*e = Envelope{}
	e.Clear()
}

// Clear empties the data and assigns a new request id, keeping the addressing.
func (e *Envelope) Clear() {
	e.data = cloneRaw(emptyObject)
	e.requestID = rand.Intn(maxRequestID) + 1
}

// SetData replaces the data with the JSON encoding of value.
func (e *Envelope) SetData(value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("envelope: encoding data: %w", err)
	}
	e.data = raw
	e.IsNull = false
	return nil
}

// Set stores value under key. Data that is not a JSON object is replaced
// by an empty object first.
func (e *Envelope) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("envelope: encoding %q: %w", key, err)
	}

	obj := e.object()
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	obj[key] = raw

	encoded, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("envelope: encoding data: %w", err)
	}
	e.data = encoded
	e.IsNull = false
	return nil
}

// SetNull drops the payload entirely.
func (e *Envelope) SetNull() {
	e.IsNull = true
	e.data = nil
}

// Get returns a copy of the raw JSON value stored under key, or nil when the
// envelope is null, the data is not an object or the key is absent.
func (e *Envelope) Get(key string) json.RawMessage {
	obj := e.object()
	if obj == nil {
		return nil
	}
	value, ok := obj[key]
	if !ok {
		return nil
	}
	return cloneRaw(value)
}

// Has reports whether key holds a non-null value.
func (e *Envelope) Has(key string) bool {
	value := e.Get(key)
	return value != nil && !bytes.Equal(bytes.TrimSpace(value), jsonNull)
}

// GetData returns a copy of the raw JSON data, or nil when there is none.
func (e *Envelope) GetData() json.RawMessage {
	if e.IsNull || e.data == nil {
		return nil
	}
	return cloneRaw(e.data)
}

// Decode unmarshals the data into v.
func (e *Envelope) Decode(v any) error {
	data := e.GetData()
	if data == nil {
		return ErrNoData
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("envelope: decoding data: %w", err)
	}
	return nil
}

// DecodeKey unmarshals the value stored under key into v.
func (e *Envelope) DecodeKey(key string, v any) error {
	value := e.Get(key)
	if value == nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err := json.Unmarshal(value, v); err != nil {
		return fmt.Errorf("envelope: decoding %q: %w", key, err)
	}
	return nil
}

// CorrelationID returns the request id. Zero means the payload carried none.
func (e *Envelope) CorrelationID() int {
	return e.requestID
}

// Reply turns the envelope into a reply: sender and recipient are swapped
// and the data cleared. Command, arguments and request id are kept.
func (e *Envelope) Reply() {
	e.Sender, e.Recipient = e.Recipient, e.Sender
	e.Topic = ""
	e.IsNull = false
	e.data = cloneRaw(emptyObject)
}

// Forward readdresses the envelope: the current recipient becomes the sender.
func (e *Envelope) Forward(recipient string) {
	e.Sender = e.Recipient
	e.Recipient = recipient
	e.Topic = ""
}

// WireArgs returns the arguments as published, with the configuration
// schema prepended when set. The envelope is not modified.
func (e *Envelope) WireArgs() string {
	if e.ConfigSchema == nil {
		return e.Args
	}
	return strconv.Itoa(*e.ConfigSchema) + topic.Separator + e.Args
}

// Payload returns the wire encoding of the payload, or nil for a null envelope.
func (e *Envelope) Payload() ([]byte, error) {
	if e.IsNull {
		return nil, nil
	}

	id := e.requestID
	body := wirePayload{RequestID: &id, Data: e.data}
	if body.Data == nil {
		body.Data = jsonNull
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("envelope: encoding payload: %w", err)
	}
	return raw, nil
}

// Validate checks the envelope can be sent.
func (e *Envelope) Validate() error {
	var errs []string

	if e.Sender == "" || e.Sender == topic.Broadcast {
		errs = append(errs, "invalid sender")
	}
	if e.Recipient == "" {
		errs = append(errs, "recipient is required")
	}
	if e.Command == "" {
		errs = append(errs, "command is required")
	}
	if e.HouseID == "" {
		errs = append(errs, "house id is required")
	}
	for _, field := range []string{e.HouseID, e.Sender, e.Recipient, e.Command, e.Args} {
		if topic.IsPattern(field) {
			errs = append(errs, fmt.Sprintf("wildcard in %q", field))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// Dump returns a human-readable description for diagnostics.
func (e *Envelope) Dump() string {
	content := "null"
	if !e.IsNull {
		data := e.data
		if data == nil {
			data = jsonNull
		}
		content = fmt.Sprintf("%s [%d]", data, e.requestID)
	}

	schema := ""
	if e.ConfigSchema != nil {
		schema = fmt.Sprintf(" (v%d)", *e.ConfigSchema)
	}

	return fmt.Sprintf("Message(%s -> %s: %s %s%s: %s)",
		e.Sender, e.Recipient, e.Command, e.Args, schema, content)
}

// object decodes the data as a JSON object, or returns nil.
func (e *Envelope) object() map[string]json.RawMessage {
	if e.IsNull || e.data == nil {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(e.data, &obj); err != nil {
		return nil
	}
	return obj
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
