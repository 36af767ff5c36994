/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeyReplacement is a string that replaces reserved characters in identifiers.
const KeyReplacement = "-"

// keyHashMarker separates an escaped identifier from the hash of the raw one.
const keyHashMarker = "~"

const defaultKeySeparator = ":"

// KeyEscaper turns a caller-supplied identifier into a string that is safe to use as a part of a storage key.
type KeyEscaper interface {
	EscapeKey(identifier string) (string, error)
}

// ReservedCharsEscaper replaces every reserved character of an identifier with a hyphen.
//
// Replacing is lossy ("2001:db8::1" and "2001-db8--1" look the same after it),
// so if the identifier was changed or contains the "~" marker,
// "~" and the hex xxhash64 of the raw identifier are appended.
// It keeps distinct identifiers in distinct keys:
//
//	"2001-db8--1" -> "2001-db8--1"
//	"2001:db8::1" -> "2001-db8--1~<16 hex digits>"
type ReservedCharsEscaper struct {
	reserved string
	re       *regexp.Regexp
}

var _ ReservedKeyCharsProvider = (*ReservedCharsEscaper)(nil)

// NewReservedCharsEscaper creates a new ReservedCharsEscaper for the given set of reserved characters.
// An empty set produces an escaper that returns identifiers as is.
func NewReservedCharsEscaper(reserved string) (*ReservedCharsEscaper, error) {
	if reserved == "" {
		return &ReservedCharsEscaper{}, nil
	}
	if strings.ContainsAny(reserved, KeyReplacement+keyHashMarker) {
		return nil, &KeyEscapingError{Key: reserved, Err: fmt.Errorf(
			"characters %q and %q are used for escaping and cannot be reserved", KeyReplacement, keyHashMarker)}
	}
	re, err := regexp.Compile("[" + regexp.QuoteMeta(reserved) + "]")
	if err != nil {
		return nil, &KeyEscapingError{Key: reserved, Err: fmt.Errorf("compile reserved characters pattern: %w", err)}
	}
	return &ReservedCharsEscaper{reserved: reserved, re: re}, nil
}

// ReservedKeyChars returns the set of reserved characters.
func (e *ReservedCharsEscaper) ReservedKeyChars() string {
	return e.reserved
}

// EscapeKey implements KeyEscaper.
func (e *ReservedCharsEscaper) EscapeKey(identifier string) (string, error) {
	if e.re == nil {
		return identifier, nil
	}
	escaped := e.re.ReplaceAllLiteralString(identifier, KeyReplacement)
	if escaped == identifier && !strings.Contains(identifier, keyHashMarker) {
		return identifier, nil
	}
	return fmt.Sprintf("%s%s%016x", escaped, keyHashMarker, xxhash.Sum64String(identifier)), nil
}

// windowKey builds a storage key: {prefix}{escaped identifier}{sep}{interval}{sep}{window index}.
func (l *Limiter) windowKey(identifier string, now time.Time) (string, error) {
	escaped, err := l.escaper.EscapeKey(identifier)
	if err != nil {
		var escErr *KeyEscapingError
		if !errors.As(err, &escErr) {
			err = &KeyEscapingError{Key: identifier, Err: err}
		}
		return "", err
	}
	interval := l.rate.IntervalSeconds()
	var sb strings.Builder
	sb.Grow(len(l.keyPrefix) + len(escaped) + 32)
	sb.WriteString(l.keyPrefix)
	sb.WriteString(escaped)
	sb.WriteString(l.keySeparator)
	sb.WriteString(strconv.FormatInt(interval, 10))
	sb.WriteString(l.keySeparator)
	sb.WriteString(strconv.FormatInt(floorDiv(now.Unix(), interval), 10))
	return sb.String(), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
