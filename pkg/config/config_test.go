package config

import (
	"testing"

	"gopkg.in/yaml.v2"
)

func TestDecode(t *testing.T) {
	doc := `pass-through-syscalls: [mprotect, madvise]
forward-stdio: false
`
	var c Config
	if err := yaml.Unmarshal([]byte(doc), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(c.PassThroughSyscalls) != 2 || c.PassThroughSyscalls[0] != "mprotect" {
		t.Errorf("pass-through-syscalls = %v", c.PassThroughSyscalls)
	}
	if c.ForwardStdioEnabled() {
		t.Errorf("forward-stdio should be disabled")
	}
}

func TestForwardStdioDefault(t *testing.T) {
	var c Config
	if !c.ForwardStdioEnabled() {
		t.Errorf("forward-stdio should default to true")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	off := false
	c := Config{PassThroughSyscalls: []string{"mremap"}, ForwardStdio: &off}
	out, err := yaml.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Config
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back.PassThroughSyscalls) != 1 || back.PassThroughSyscalls[0] != "mremap" {
		t.Errorf("pass-through-syscalls = %v", back.PassThroughSyscalls)
	}
	if back.ForwardStdioEnabled() {
		t.Errorf("forward-stdio should survive the round trip")
	}
}
