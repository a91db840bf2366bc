package topic

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		{name: "single level", pattern: "a/+/c", topic: "a/b/c", want: true},
		{name: "single level is one segment", pattern: "a/+/c", topic: "a/b/b/c", want: false},
		{name: "multi level", pattern: "a/#", topic: "a/b/c", want: true},
		{name: "multi level anchored", pattern: "a/#", topic: "b/a", want: false},
		{name: "multi level needs a segment", pattern: "a/#", topic: "a", want: false},
		{name: "multi level not last", pattern: "a/#/c", topic: "a/b/c", want: false},
		{name: "literal", pattern: "a/b/c", topic: "a/b/c", want: true},
		{name: "literal mismatch", pattern: "a/b/c", topic: "a/b/d", want: false},
		{name: "prefix match", pattern: "a/b", topic: "a/b/c", want: true},
		{name: "pattern longer than topic", pattern: "a/b/c", topic: "a/b", want: false},
		{name: "star matches any segment", pattern: "a/*/c", topic: "a/house1/c", want: true},
		{name: "star matches literal star", pattern: "a/*/c", topic: "a/*/c", want: true},
		{name: "empty pattern", pattern: "", topic: "a", want: false},
		{
			name:    "request listener",
			pattern: Build(SingleLevel, AnyModule, "system/monitor", SingleLevel, MultiLevel),
			topic:   Build("house1", "controller/hub", "system/monitor", "PING", ""),
			want:    true,
		},
		{
			name:    "configuration listener",
			pattern: Build(SingleLevel, ConfigAuthority, Broadcast, CommandConf, "3/net"),
			topic:   "egeoffrey/v1/house1/controller/config/myModule/worker/CONF/3/net",
			want:    true,
		},
		{
			name:    "configuration listener other file",
			pattern: Build(SingleLevel, ConfigAuthority, Broadcast, CommandConf, "3/net"),
			topic:   "egeoffrey/v1/house1/controller/config/*/*/CONF/3/house",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.pattern, tt.topic); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}
