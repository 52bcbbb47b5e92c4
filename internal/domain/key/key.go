// Package key models the composite candidate identifier: a fixed-width segment
// prefix followed by a fixed-width suffix. Keys are synthesized from numbers and
// never parsed back from upstream responses.
package key

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/examharvest/internal/domain"
)

// Default widths produce the 8-digit candidate numbers used by the exam service.
const (
	DefaultPrefixWidth = 2
	DefaultSuffixWidth = 6
)

// Format describes how keys are rendered.
type Format struct {
	prefixWidth int
	suffixWidth int
}

// NewFormat validates and creates a key Format.
func NewFormat(prefixWidth, suffixWidth int) (Format, error) {
	if prefixWidth <= 0 || prefixWidth > 9 {
		return Format{}, fmt.Errorf("prefix width %d out of range 1..9: %w", prefixWidth, domain.ErrInvalidKey)
	}
	if suffixWidth <= 0 || suffixWidth > 9 {
		return Format{}, fmt.Errorf("suffix width %d out of range 1..9: %w", suffixWidth, domain.ErrInvalidKey)
	}
	return Format{prefixWidth: prefixWidth, suffixWidth: suffixWidth}, nil
}

// DefaultFormat returns the 2+6 digit format.
func DefaultFormat() Format {
	return Format{prefixWidth: DefaultPrefixWidth, suffixWidth: DefaultSuffixWidth}
}

// PrefixWidth returns the number of prefix digits.
func (f Format) PrefixWidth() int { return f.prefixWidth }

// SuffixWidth returns the number of suffix digits.
func (f Format) SuffixWidth() int { return f.suffixWidth }

// MaxPrefix returns the largest prefix that fits the prefix width.
func (f Format) MaxPrefix() int { return pow10(f.prefixWidth) - 1 }

// MaxSuffix returns the largest suffix that fits the suffix width.
func (f Format) MaxSuffix() int { return pow10(f.suffixWidth) - 1 }

// Key is one synthesized identifier.
type Key struct {
	prefix int
	suffix int
	format Format
}

// New builds a Key, rejecting components that are negative or overflow their width.
func (f Format) New(prefix, suffix int) (Key, error) {
	if prefix < 0 || prefix > f.MaxPrefix() {
		return Key{}, fmt.Errorf("prefix %d does not fit %d digits: %w", prefix, f.prefixWidth, domain.ErrInvalidKey)
	}
	if suffix < 0 || suffix > f.MaxSuffix() {
		return Key{}, fmt.Errorf("suffix %d does not fit %d digits: %w", suffix, f.suffixWidth, domain.ErrInvalidKey)
	}
	return Key{prefix: prefix, suffix: suffix, format: f}, nil
}

// Prefix returns the segment prefix.
func (k Key) Prefix() int { return k.prefix }

// Suffix returns the suffix within the segment.
func (k Key) Suffix() int { return k.suffix }

// String renders the zero-padded key, e.g. prefix 7 suffix 42 -> "07000042".
func (k Key) String() string {
	buf := make([]byte, 0, k.format.prefixWidth+k.format.suffixWidth)
	buf = appendPadded(buf, k.prefix, k.format.prefixWidth)
	buf = appendPadded(buf, k.suffix, k.format.suffixWidth)
	return string(buf)
}

func appendPadded(buf []byte, n, width int) []byte {
	s := strconv.Itoa(n)
	for i := len(s); i < width; i++ {
		buf = append(buf, '0')
	}
	return append(buf, s...)
}

func pow10(n int) int {
	v := 1
	for range n {
		v *= 10
	}
	return v
}
