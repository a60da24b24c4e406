package account

import (
	"fmt"
	"strings"
)

// ParseDescription parses a [LEVEL:]USERNAME:PASSWORDFILE string. Fields are
// taken verbatim; no whitespace is stripped and the file is not read.
//
// The returned PasswordFile is exactly as written. NormalizeOne makes it
// absolute.
func ParseDescription(description string) (Canonical, error) {
	fields := strings.Split(description, ":")

	var c Canonical
	switch len(fields) {
	case 2:
		c = Canonical{
			Username:     fields[0],
			PasswordFile: &fields[1],
			Level:        LevelFull,
		}
	case 3:
		level := Level(fields[0])
		if !level.Valid() {
			return Canonical{}, fmt.Errorf("%w: 'level' field must be either 'full' or 'readonly'", ErrInvalidLevel)
		}
		c = Canonical{
			Username:     fields[1],
			PasswordFile: &fields[2],
			Level:        level,
		}
	default:
		return Canonical{}, fmt.Errorf("%w: expected [LEVEL:]USERNAME:PASSWORDFILE, got %d fields", ErrInvalidFormat, len(fields))
	}

	if c.Username == ReservedUsername {
		return Canonical{}, fmt.Errorf("%w: the username '%s' is not allowed", ErrReservedUsername, ReservedUsername)
	}

	return c, nil
}
