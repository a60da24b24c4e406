package account

import "fmt"

// Validate checks every entry of an account list and returns all defects
// found, deduplicated by message in first-seen order. key is the
// configuration key the list came from and is quoted in each message.
//
// Validate never reads password files. A list with no defects is valid but
// not necessarily canonical.
func Validate(key string, specs []Spec) ValidationErrors {
	v := validator{key: key, seen: make(map[string]bool)}
	for _, spec := range specs {
		switch spec.Kind() {
		case KindDescription:
			v.description(spec.Description())
		case KindRecord:
			v.record(spec.Record())
		default:
			v.add(ErrInvalidShape, "'%s' may only contain strings or objects", key)
		}
	}
	return v.errs
}

type validator struct {
	key  string
	errs ValidationErrors
	seen map[string]bool
}

func (v *validator) add(kind error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if v.seen[msg] {
		return
	}
	v.seen[msg] = true
	v.errs = append(v.errs, ValidationError{Kind: kind, Key: v.key, Message: msg})
}

func (v *validator) description(desc string) {
	if _, err := ParseDescription(desc); err != nil {
		v.add(kindOf(err), "'%s' contains an invalid authorization description (%s): %v", v.key, desc, err)
	}
}

func (v *validator) record(rec map[string]any) {
	if username, ok := rec[fieldUsername]; ok {
		if s, isString := username.(string); !isString {
			v.add(ErrWrongType, "All usernames in '%s' must be strings", v.key)
		} else if s == ReservedUsername {
			v.add(ErrReservedUsername, "'%s' may not contain an '%s' username", v.key, ReservedUsername)
		}
	} else {
		v.add(ErrMissingField, "All objects in '%s' must contain the 'username' key", v.key)
	}

	password, hasPassword := rec[fieldPassword]
	passwordFile, hasPasswordFile := rec[fieldPasswordFile]
	switch {
	case hasPassword:
		if _, ok := password.(string); !ok {
			v.add(ErrWrongType, "All passwords in '%s' must be strings", v.key)
		}
		if hasPasswordFile {
			v.add(ErrConflictingFields, "Entries in '%s' must contain either the 'password' or the 'password_file' field, but not both", v.key)
		}
	case hasPasswordFile:
		if _, ok := passwordFile.(string); !ok {
			v.add(ErrWrongType, "All 'password_file' fields in '%s' must be strings", v.key)
		}
	default:
		v.add(ErrMissingField, "All objects in '%s' must contain either the 'password' or 'password_file' key", v.key)
	}

	if level, ok := rec[fieldLevel]; ok {
		if s, isString := level.(string); !isString || !Level(s).Valid() {
			v.add(ErrInvalidLevel, "All 'level' fields in '%s' must be either 'readonly' or 'full'", v.key)
		}
	}
}
