package account

import (
	"fmt"
	"os"
	"path/filepath"
)

// Normalizer converts valid specs into Canonical records.
type Normalizer struct {
	// BaseDir anchors relative password_file paths. When empty, the process
	// working directory is used.
	BaseDir string
}

// NormalizeOne normalizes spec with the zero Normalizer.
func NormalizeOne(spec Spec) (Canonical, error) {
	return Normalizer{}.NormalizeOne(spec)
}

// NormalizeAll normalizes specs with the zero Normalizer.
func NormalizeAll(specs []Spec) ([]Canonical, error) {
	return Normalizer{}.NormalizeAll(specs)
}

// NormalizeOne converts a valid spec into its canonical form. Descriptions
// are parsed, records are copied with the level defaulted to full, and
// password_file is made absolute in both cases. Applying NormalizeOne to the
// Spec of a canonical record returns the same record.
//
// The input is expected to have passed Validate. Shape errors are still
// returned rather than ignored.
func (n Normalizer) NormalizeOne(spec Spec) (Canonical, error) {
	var (
		c   Canonical
		err error
	)
	switch spec.Kind() {
	case KindDescription:
		c, err = ParseDescription(spec.Description())
	case KindRecord:
		c, err = fromRecord(spec.Record())
	default:
		err = fmt.Errorf("%w: %T", ErrInvalidShape, spec.Value())
	}
	if err != nil {
		return Canonical{}, err
	}

	if c.PasswordFile != nil {
		abs, err := n.absolutize(*c.PasswordFile)
		if err != nil {
			return Canonical{}, fmt.Errorf("resolving password_file for %q: %w", c.Username, err)
		}
		c.PasswordFile = &abs
	}
	return c, nil
}

// NormalizeAll applies NormalizeOne to each spec, preserving order.
func (n Normalizer) NormalizeAll(specs []Spec) ([]Canonical, error) {
	out := make([]Canonical, 0, len(specs))
	for i, spec := range specs {
		c, err := n.NormalizeOne(spec)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (n Normalizer) absolutize(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	base := n.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = wd
	}
	return filepath.Abs(filepath.Join(base, path))
}

func fromRecord(rec map[string]any) (Canonical, error) {
	username, err := stringField(rec, fieldUsername)
	if err != nil {
		return Canonical{}, err
	}
	c := Canonical{Username: username, Level: LevelFull}

	if _, ok := rec[fieldPassword]; ok {
		password, err := stringField(rec, fieldPassword)
		if err != nil {
			return Canonical{}, err
		}
		c.Password = &password
	} else if _, ok := rec[fieldPasswordFile]; ok {
		file, err := stringField(rec, fieldPasswordFile)
		if err != nil {
			return Canonical{}, err
		}
		c.PasswordFile = &file
	}

	if _, ok := rec[fieldLevel]; ok {
		level, err := stringField(rec, fieldLevel)
		if err != nil {
			return Canonical{}, err
		}
		c.Level = Level(level)
	}
	return c, nil
}

func stringField(rec map[string]any, key string) (string, error) {
	v, ok := rec[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T", ErrWrongType, key, v)
	}
	return s, nil
}
