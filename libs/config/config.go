// Package config resolves service settings from the environment, optionally
// layered over a YAML file. Environment variables always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Source struct {
	v *viper.Viper
}

func NewSource() *Source {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Source{v: v}
}

// ReadFile merges a YAML file into the source. Keys are matched
// case-insensitively against environment names, so `hold_ttl: 10m` in the
// file is overridden by HOLD_TTL.
func (s *Source) ReadFile(path string) error {
	if path == "" {
		return nil
	}
	s.v.SetConfigFile(path)
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Unmarshal decodes the subtree at key into out.
func (s *Source) Unmarshal(key string, out any) error {
	return s.v.UnmarshalKey(key, out)
}

func (s *Source) String(key, fallback string) string {
	v := strings.TrimSpace(s.v.GetString(key))
	if v == "" {
		return fallback
	}
	return v
}

func (s *Source) RequiredString(key string) (string, error) {
	v := s.String(key, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func (s *Source) Port(key, fallback string) (string, error) {
	v := s.String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return v, nil
}

func (s *Source) Int(key string, fallback int) (int, error) {
	raw := s.String(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, raw)
	}
	return n, nil
}

func (s *Source) Float(key string, fallback float64) (float64, error) {
	raw := s.String(key, "")
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number (got %q)", key, raw)
	}
	return f, nil
}

func (s *Source) Bool(key string, fallback bool) bool {
	switch strings.ToLower(s.String(key, "")) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func (s *Source) Duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := s.String(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration like 15m (got %q)", key, raw)
	}
	return d, nil
}
