package pathsafe

import (
	"strings"

	"github.com/roivaz/pacc/internal/kinds"
)

const maxNameLength = 64

// reservedNames are host-reserved words no logical name may collide with,
// regardless of Kind.
var reservedNames = map[string]struct{}{
	"help": {}, "exit": {}, "list": {}, "install": {}, "remove": {},
	"update": {}, "sync": {}, "plugin": {}, "plugins": {},
}

// reservedDeviceNames are Windows/DOS device names that are reserved on
// case-insensitive filesystems (FAT/NTFS-backed mounts, macOS default
// volumes) independent of extension.
var reservedDeviceNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// ValidateName applies per-kind naming rules: ASCII letters/digits/hyphen/
// underscore, no leading dot or hyphen, length <= 64, and the reserved
// word tables above. Kind is accepted for forward-compatible per-kind
// rules (e.g. a future Kind with stricter limits) though today's rules are
// uniform across Kinds.
func ValidateName(kind kinds.Kind, name string) error {
	if name == "" || len(name) > maxNameLength {
		return &NameError{Code: NameInvalid, Name: name}
	}
	if name[0] == '.' || name[0] == '-' {
		return &NameError{Code: NameInvalid, Name: name}
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return &NameError{Code: NameInvalid, Name: name}
		}
	}
	lower := strings.ToLower(name)
	if _, reserved := reservedNames[lower]; reserved {
		return &NameError{Code: NameReserved, Name: name}
	}
	if _, reserved := reservedDeviceNames[lower]; reserved {
		return &NameError{Code: NameReserved, Name: name}
	}
	return nil
}
