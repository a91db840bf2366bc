package topic

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic layout constants.
const (
	// Prefix is the fixed first segment of every bus topic.
	Prefix = "egeoffrey"

	// APIVersion is the protocol version carried in the second segment.
	APIVersion = "v1"

	// Separator delimits topic segments.
	Separator = "/"

	// Null replaces empty arguments on the wire.
	Null = "null"

	// minSegments is the number of structural segments preceding the arguments.
	minSegments = 8
)

// Wildcards accepted in patterns.
const (
	// SingleLevel matches exactly one segment.
	SingleLevel = "+"

	// MultiLevel matches the remaining segments.
	MultiLevel = "#"

	// Any is used for "any house" and, twice, for the broadcast recipient.
	Any = "*"
)

// Well-known commands and participants.
const (
	CommandConf   = "CONF"
	CommandPing   = "PING"
	CommandPong   = "PONG"
	CommandStatus = "STATUS"
	CommandSave   = "SAVE"
	CommandDelete = "DELETE"

	// ConfigAuthority is the module publishing configuration files.
	ConfigAuthority = "controller/config"

	// Broadcast addresses every module.
	Broadcast = "*/*"

	// AnyModule matches any sender or recipient in a listener pattern.
	AnyModule = "+/+"
)

// Address is the parsed form of a bus topic.
type Address struct {
	HouseID   string
	Sender    string
	Recipient string
	Command   string
	Args      string

	// ConfigSchema is set only for CONF topics.
	ConfigSchema *int
}

// Build joins the topic fields. Empty args become "null". Inputs are not
// validated and wildcards pass through, which is how listener patterns are
// produced.
//
// Example: Build("house1", "system/monitor", "*/*", "STATUS", "1")
// returns "egeoffrey/v1/house1/system/monitor/*/*/STATUS/1".
func Build(houseID, sender, recipient, command, args string) string {
	if args == "" {
		args = Null
	}
	return strings.Join([]string{Prefix, APIVersion, houseID, sender, recipient, command, args}, Separator)
}

// Parse splits a concrete topic into its fields.
//
// Returns ErrParse (wrapped) when fewer than 8 segments are present, when
// the prefix or API version do not match, or when a CONF topic does not
// start its arguments with a decimal schema version.
func Parse(topic string) (Address, error) {
	segments := strings.Split(topic, Separator)
	if len(segments) < minSegments {
		return Address{}, fmt.Errorf("%w: missing required information in %q", ErrParse, topic)
	}
	if segments[0] != Prefix || segments[1] != APIVersion {
		return Address{}, fmt.Errorf("%w: invalid api call %q", ErrParse, topic)
	}

	addr := Address{
		HouseID:   segments[2],
		Sender:    segments[3] + Separator + segments[4],
		Recipient: segments[5] + Separator + segments[6],
		Command:   segments[7],
		Args:      strings.Join(segments[minSegments:], Separator),
	}

	if addr.Command == CommandConf {
		schema, rest, err := splitSchema(segments[minSegments:])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %w in %q", ErrParse, err, topic)
		}
		addr.ConfigSchema = &schema
		addr.Args = rest
	}

	return addr, nil
}

// splitSchema extracts the leading schema version from CONF arguments.
func splitSchema(args []string) (int, string, error) {
	if len(args) == 0 || !isDecimal(args[0]) {
		return 0, "", fmt.Errorf("configuration schema is not a number")
	}
	schema, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", fmt.Errorf("configuration schema: %w", err)
	}
	return schema, strings.Join(args[1:], Separator), nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// WireArgs returns the argument string as it appears on the wire, with the
// schema version prepended for configuration topics.
func (a Address) WireArgs() string {
	if a.ConfigSchema == nil {
		return a.Args
	}
	return strconv.Itoa(*a.ConfigSchema) + Separator + a.Args
}

// String rebuilds the topic for this address.
func (a Address) String() string {
	return Build(a.HouseID, a.Sender, a.Recipient, a.Command, a.WireArgs())
}

// IsPattern reports whether s contains a + or # segment.
func IsPattern(s string) bool {
	for _, seg := range strings.Split(s, Separator) {
		if seg == SingleLevel || seg == MultiLevel {
			return true
		}
	}
	return false
}
