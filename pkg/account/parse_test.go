package account

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDescription_TwoFields(t *testing.T) {
	c, err := ParseDescription("alice:/etc/secret")
	if err != nil {
		t.Fatalf("ParseDescription() error: %v", err)
	}
	if c.Username != "alice" {
		t.Errorf("Username = %q, want %q", c.Username, "alice")
	}
	if c.PasswordFile == nil || *c.PasswordFile != "/etc/secret" {
		t.Errorf("PasswordFile = %v, want /etc/secret", c.PasswordFile)
	}
	if c.Password != nil {
		t.Errorf("Password = %q, want nil", *c.Password)
	}
	if c.Level != LevelFull {
		t.Errorf("Level = %q, want %q", c.Level, LevelFull)
	}
}

func TestParseDescription_ThreeFields(t *testing.T) {
	tests := []struct {
		input string
		level Level
	}{
		{"full:bob:/run/bob", LevelFull},
		{"readonly:bob:/run/bob", LevelReadOnly},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			c, err := ParseDescription(tc.input)
			if err != nil {
				t.Fatalf("ParseDescription() error: %v", err)
			}
			if c.Username != "bob" {
				t.Errorf("Username = %q, want %q", c.Username, "bob")
			}
			if *c.PasswordFile != "/run/bob" {
				t.Errorf("PasswordFile = %q, want %q", *c.PasswordFile, "/run/bob")
			}
			if c.Level != tc.level {
				t.Errorf("Level = %q, want %q", c.Level, tc.level)
			}
		})
	}
}

func TestParseDescription_InvalidLevel(t *testing.T) {
	for _, input := range []string{"admin:bob:/f", "FULL:bob:/f", ":bob:/f", " full:bob:/f"} {
		_, err := ParseDescription(input)
		if !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("ParseDescription(%q) error = %v, want ErrInvalidLevel", input, err)
		}
	}
}

func TestParseDescription_InvalidFormat(t *testing.T) {
	for _, input := range []string{"", "alice", "a:b:c:d", "full:a:b:c"} {
		_, err := ParseDescription(input)
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("ParseDescription(%q) error = %v, want ErrInvalidFormat", input, err)
		}
	}
}

func TestParseDescription_ReservedUsername(t *testing.T) {
	for _, input := range []string{"api:/f", "readonly:api:/f"} {
		_, err := ParseDescription(input)
		if !errors.Is(err, ErrReservedUsername) {
			t.Fatalf("ParseDescription(%q) error = %v, want ErrReservedUsername", input, err)
		}
		if !strings.Contains(err.Error(), "'api'") {
			t.Errorf("error %q does not name the reserved username", err)
		}
	}
}

func TestParseDescription_NoTrimming(t *testing.T) {
	c, err := ParseDescription(" alice : file ")
	if err != nil {
		t.Fatalf("ParseDescription() error: %v", err)
	}
	if c.Username != " alice " {
		t.Errorf("Username = %q, want %q", c.Username, " alice ")
	}
	if *c.PasswordFile != " file " {
		t.Errorf("PasswordFile = %q, want %q", *c.PasswordFile, " file ")
	}
}
