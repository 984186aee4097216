package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Hardened marks a hardened derivation index
	Hardened uint32 = 0x80000000
	// MaxPathDepth is the deepest path the NEO app accepts
	MaxPathDepth = 10
	// DefaultPath is the first NEO N3 account
	DefaultPath = "m/44'/888'/0'/0/0"
)

var ErrInvalidPath = errors.New("invalid derivation path")

// Path is a BIP32 derivation path, one index per level
type Path []uint32

// ParsePath parses paths of the form m/44'/888'/0'/0/0. Hardened levels may
// be marked with ' or h. The leading "m/" is optional.
func ParsePath(s string) (Path, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "m/")
	if trimmed == "" || trimmed == "m" {
		return nil, fmt.Errorf("%w: %q has no levels", ErrInvalidPath, s)
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > MaxPathDepth {
		return nil, fmt.Errorf("%w: %d levels, at most %d", ErrInvalidPath, len(parts), MaxPathDepth)
	}
	path := make(Path, len(parts))
	for i, part := range parts {
		hardened := strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h")
		if hardened {
			part = part[:len(part)-1]
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: level %d of %q: %v", ErrInvalidPath, i, s, err)
		}
		if uint32(v)&Hardened != 0 {
			return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidPath, v)
		}
		path[i] = uint32(v)
		if hardened {
			path[i] |= Hardened
		}
	}
	return path, nil
}

// MustParsePath is ParsePath for constant paths; it panics on error
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString("m")
	for _, v := range p {
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatUint(uint64(v&^Hardened), 10))
		if v&Hardened != 0 {
			sb.WriteByte('\'')
		}
	}
	return sb.String()
}

// Bytes encodes the path as the device expects it: each level as a
// big-endian uint32, without a level count.
func (p Path) Bytes() []byte {
	out := make([]byte, 4*len(p))
	for i, v := range p {
		binary.BigEndian.PutUint32(out[4*i:], v)
	}
	return out
}

// PathFromBytes decodes the device encoding produced by Bytes
func PathFromBytes(b []byte) (Path, error) {
	if len(b) == 0 || len(b)%4 != 0 || len(b)/4 > MaxPathDepth {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPath, len(b))
	}
	p := make(Path, len(b)/4)
	for i := range p {
		p[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	return p, nil
}
