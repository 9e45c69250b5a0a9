package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(16)
	if len(hex) != 16 {
		t.Errorf("expected 16 characters, got %d", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("non-hex character %q in %q", c, hex)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Errorf("zero length should yield empty string")
	}
	if GenerateRandomHex(-3) != "" {
		t.Errorf("negative length should yield empty string")
	}
}

func TestGenerateThreadID(t *testing.T) {
	id := GenerateThreadID()
	if !strings.HasPrefix(id, "t_") {
		t.Errorf("thread ID should carry the t_ prefix, got %q", id)
	}
	if len(id) != 34 {
		t.Errorf("expected 34 characters, got %d (%q)", len(id), id)
	}
	if GenerateThreadID() == id {
		t.Errorf("consecutive IDs should differ")
	}
}
