package account

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Level is the privilege tier of an account.
type Level string

const (
	// LevelFull grants unrestricted access to the admin API.
	LevelFull Level = "full"

	// LevelReadOnly restricts an account to non-mutating operations.
	LevelReadOnly Level = "readonly"
)

// ReservedUsername is used by the system's internal account and may not be
// configured by operators.
const ReservedUsername = "api"

// Record keys.
const (
	fieldUsername     = "username"
	fieldPassword     = "password"
	fieldPasswordFile = "password_file"
	fieldLevel        = "level"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	return l == LevelFull || l == LevelReadOnly
}

// Kind identifies which variant a Spec holds.
type Kind int

const (
	// KindInvalid is any decoded value that is neither a string nor an object.
	KindInvalid Kind = iota

	// KindDescription is a [LEVEL:]USERNAME:PASSWORDFILE string.
	KindDescription

	// KindRecord is an object with username, password or password_file, and
	// an optional level.
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindDescription:
		return "description"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

// Spec is one operator-supplied account specification, before validation.
// The zero value is KindInvalid.
type Spec struct {
	kind        Kind
	description string
	record      map[string]any
	raw         any
}

// DescriptionSpec returns a Spec holding a description string.
func DescriptionSpec(description string) Spec {
	return Spec{kind: KindDescription, description: description}
}

// RecordSpec returns a Spec holding an object. Values are expected to be
// decoded JSON or YAML values; non-string values are reported by Validate.
func RecordSpec(record map[string]any) Spec {
	if record == nil {
		record = map[string]any{}
	}
	return Spec{kind: KindRecord, record: record}
}

// SpecFromValue classifies a decoded JSON or YAML value.
func SpecFromValue(v any) Spec {
	switch val := v.(type) {
	case string:
		return DescriptionSpec(val)
	case map[string]any:
		return RecordSpec(val)
	case map[any]any:
		// yaml.v3 decodes mappings with any non-string key this way.
		rec := make(map[string]any, len(val))
		for k, v := range val {
			rec[fmt.Sprint(k)] = v
		}
		return RecordSpec(rec)
	default:
		return Spec{kind: KindInvalid, raw: v}
	}
}

// Kind returns the variant held by s.
func (s Spec) Kind() Kind { return s.kind }

// Description returns the description string of a KindDescription spec.
func (s Spec) Description() string { return s.description }

// Record returns the object of a KindRecord spec. The map must not be
// modified.
func (s Spec) Record() map[string]any { return s.record }

// Value returns s as a plain decoded value.
func (s Spec) Value() any {
	switch s.kind {
	case KindDescription:
		return s.description
	case KindRecord:
		return s.record
	default:
		return s.raw
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SpecFromValue(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Value())
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("decoding account entry at line %d: %w", node.Line, err)
	}
	*s = SpecFromValue(v)
	return nil
}

// Canonical is a normalized account specification. Level is always set and
// exactly one of Password and PasswordFile is non-nil. PasswordFile, when
// produced by a Normalizer, is absolute.
type Canonical struct {
	Username     string  `json:"username"`
	Password     *string `json:"password,omitempty"`
	PasswordFile *string `json:"password_file,omitempty"`
	Level        Level   `json:"level"`
}

// Spec returns c as a record Spec.
func (c Canonical) Spec() Spec {
	rec := map[string]any{
		fieldUsername: c.Username,
		fieldLevel:    string(c.Level),
	}
	if c.Password != nil {
		rec[fieldPassword] = *c.Password
	}
	if c.PasswordFile != nil {
		rec[fieldPasswordFile] = *c.PasswordFile
	}
	return RecordSpec(rec)
}
