package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
)

// Settings is the queue-wide configuration record. It is immutable: changing a
// value produces a new record via With.
type Settings struct {
	MaxRetries  int
	BackoffBase time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
	}
}

// NormalizeKey accepts both "max-retries" and "max_retries" spellings.
func NormalizeKey(key string) (string, error) {
	k := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
	for _, known := range SettingKeys {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSetting, key)
}

func (s Settings) Get(key string) (string, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	return s.Values()[k], nil
}

// With returns a copy of s with key set to value.
func (s Settings) With(key, value string) (Settings, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return s, err
	}

	value = strings.TrimSpace(value)
	switch k {
	case KeyMaxRetries:
		n, err := strconv.Atoi(value)
		if err != nil {
			return s, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidSetting, k, value)
		}
		if n < 0 {
			return s, fmt.Errorf("%w: %s must be non-negative", ErrInvalidSetting, k)
		}
		s.MaxRetries = n
	case KeyBackoffBase:
		d, err := parseInterval(value)
		if err != nil {
			return s, fmt.Errorf("%w: %s: %v", ErrInvalidSetting, k, err)
		}
		s.BackoffBase = d
	}
	return s, nil
}

// Values renders the record in its persisted string form.
func (s Settings) Values() map[string]string {
	return map[string]string{
		KeyMaxRetries:  strconv.Itoa(s.MaxRetries),
		KeyBackoffBase: strconv.FormatFloat(s.BackoffBase.Seconds(), 'f', -1, 64),
	}
}

// FromValues rebuilds a record from persisted values on top of the defaults.
// Keys that are not settings are ignored.
func FromValues(values map[string]string) (Settings, error) {
	s := DefaultSettings()
	for _, k := range SettingKeys {
		v, ok := values[k]
		if !ok {
			continue
		}
		next, err := s.With(k, v)
		if err != nil {
			return DefaultSettings(), err
		}
		s = next
	}
	return s, nil
}

// parseInterval reads seconds ("2", "0.5") or a Go duration ("250ms").
func parseInterval(value string) (time.Duration, error) {
	var d time.Duration
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		ns := secs * float64(time.Second)
		if math.IsNaN(ns) || ns >= math.MaxInt64 {
			return 0, fmt.Errorf("%q is out of range", value)
		}
		d = time.Duration(ns)
	} else {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("expected seconds or a duration, got %q", value)
		}
		d = parsed
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
