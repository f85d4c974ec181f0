package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrNoSource is returned when a FlagSource has no backing store.
var ErrNoSource = errors.New("no configuration source")

// FlagSource reads individual flags from a viper instance. Values arrive as
// YAML scalars or environment strings; booleans map to 0/1 and numeric
// strings accept a 0x prefix.
type FlagSource struct {
	v      *viper.Viper
	prefix string
}

// NewFlagSource creates a source reading keys under prefix ("" for root).
func NewFlagSource(v *viper.Viper, prefix string) *FlagSource {
	return &FlagSource{v: v, prefix: prefix}
}

func (s *FlagSource) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "." + name
}

// ReadFlag returns the numeric value of name. Unset flags read as 0.
func (s *FlagSource) ReadFlag(name string) (uint64, error) {
	if s == nil || s.v == nil {
		return 0, ErrNoSource
	}
	raw := s.v.Get(s.key(name))

	if str, ok := raw.(string); ok {
		str = strings.TrimSpace(str)
		if str == "" {
			return 0, nil
		}
		if b, err := strconv.ParseBool(str); err == nil {
			if b {
				return 1, nil
			}
			return 0, nil
		}
		raw = str
	}

	val, err := cast.ToUint64E(raw)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", s.key(name), err)
	}
	return val, nil
}

// ReadString returns the string value of name.
func (s *FlagSource) ReadString(name string) (string, error) {
	if s == nil || s.v == nil {
		return "", ErrNoSource
	}
	val, err := cast.ToStringE(s.v.Get(s.key(name)))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", s.key(name), err)
	}
	return val, nil
}
