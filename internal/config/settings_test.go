package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"max_retries", KeyMaxRetries, false},
		{"max-retries", KeyMaxRetries, false},
		{" Backoff-Base ", KeyBackoffBase, false},
		{"colour", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownSetting)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettings_With(t *testing.T) {
	base := DefaultSettings()

	tests := []struct {
		name    string
		key     string
		value   string
		want    Settings
		wantErr error
	}{
		{"max retries", "max-retries", "5", Settings{MaxRetries: 5, BackoffBase: time.Second}, nil},
		{"zero max retries", "max_retries", "0", Settings{MaxRetries: 0, BackoffBase: time.Second}, nil},
		{"negative max retries", "max_retries", "-1", base, ErrInvalidSetting},
		{"non-numeric max retries", "max_retries", "lots", base, ErrInvalidSetting},
		{"backoff in seconds", "backoff-base", "2", Settings{MaxRetries: 3, BackoffBase: 2 * time.Second}, nil},
		{"fractional backoff", "backoff_base", "0.5", Settings{MaxRetries: 3, BackoffBase: 500 * time.Millisecond}, nil},
		{"backoff as duration", "backoff_base", "1m30s", Settings{MaxRetries: 3, BackoffBase: 90 * time.Second}, nil},
		{"zero backoff", "backoff_base", "0", base, ErrInvalidSetting},
		{"garbage backoff", "backoff_base", "soon", base, ErrInvalidSetting},
		{"infinite backoff", "backoff_base", "inf", base, ErrInvalidSetting},
		{"unknown key", "colour", "blue", base, ErrUnknownSetting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := base.With(tt.key, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, DefaultSettings(), base, "With must not modify the receiver")
}

func TestSettings_ValuesRoundTrip(t *testing.T) {
	s := Settings{MaxRetries: 7, BackoffBase: 1500 * time.Millisecond}

	values := s.Values()
	assert.Equal(t, map[string]string{"max_retries": "7", "backoff_base": "1.5"}, values)

	back, err := FromValues(values)
	require.NoError(t, err)
	assert.Equal(t, s, back)

	v, err := s.Get("backoff-base")
	require.NoError(t, err)
	assert.Equal(t, "1.5", v)
}

func TestFromValues(t *testing.T) {
	s, err := FromValues(map[string]string{"max_retries": "1", "unrelated": "x"})
	require.NoError(t, err)
	assert.Equal(t, Settings{MaxRetries: 1, BackoffBase: DefaultBackoffBase}, s)

	s, err = FromValues(map[string]string{"backoff_base": "-3"})
	assert.ErrorIs(t, err, ErrInvalidSetting)
	assert.Equal(t, DefaultSettings(), s)
}
