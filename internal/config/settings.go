package config

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// fileSettings is the merged view of config file and environment values.
// viper lowercases keys; nested maps are lowercased by section.
type fileSettings map[string]interface{}

// find returns the first non-nil value among names.
func (s fileSettings) find(names ...string) (interface{}, bool) {
	for _, name := range names {
		if v, ok := s[strings.ToLower(name)]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// text copies a string setting into dst. Empty values leave dst unchanged.
func (s fileSettings) text(dst *string, names ...string) {
	v, ok := s.find(names...)
	if !ok {
		return
	}
	var str string
	switch t := v.(type) {
	case string:
		str = t
	case []byte:
		str = string(t)
	default:
		str = fmt.Sprint(t)
	}
	if str != "" {
		*dst = str
	}
}

func (s fileSettings) number(dst *float64, names ...string) error {
	v, ok := s.find(names...)
	if !ok {
		return nil
	}
	f, err := toFloat(v)
	if err != nil {
		return fmt.Errorf("%s: %w", names[0], err)
	}
	*dst = f
	return nil
}

func (s fileSettings) count(dst *int, names ...string) error {
	v, ok := s.find(names...)
	if !ok {
		return nil
	}
	f, err := toFloat(v)
	if err != nil {
		return fmt.Errorf("%s: %w", names[0], err)
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("%s: %v is not a whole number", names[0], v)
	}
	*dst = int(f)
	return nil
}

func (s fileSettings) flag(dst *bool, names ...string) error {
	v, ok := s.find(names...)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case bool:
		*dst = t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return fmt.Errorf("%s: %w", names[0], err)
		}
		*dst = b
	default:
		return fmt.Errorf("%s: expected true or false, got %T", names[0], v)
	}
	return nil
}

// duration accepts a Go duration string or a bare number of seconds.
func (s fileSettings) duration(dst *time.Duration, names ...string) error {
	v, ok := s.find(names...)
	if !ok {
		return nil
	}
	d, err := parseSeconds(v)
	if err != nil {
		return fmt.Errorf("%s: %w", names[0], err)
	}
	*dst = d
	return nil
}

// headers merges a header section into dst. A string value is read as a
// JSON object, the form --headers takes on the command line.
func (s fileSettings) headers(dst map[string]string, names ...string) error {
	v, ok := s.find(names...)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return mergeJSONHeaders(dst, t)
	case map[string]interface{}:
		for k, val := range t {
			key := http.CanonicalHeaderKey(strings.TrimSpace(k))
			if key == "" {
				return fmt.Errorf("%s: header key cannot be empty", names[0])
			}
			dst[key] = fmt.Sprint(val)
		}
		return nil
	default:
		return fmt.Errorf("%s: expected a map of header names to values, got %T", names[0], v)
	}
}

func (s fileSettings) list(dst *[]string, names ...string) error {
	v, ok := s.find(names...)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		*dst = []string{t}
	case []string:
		*dst = append([]string(nil), t...)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		*dst = out
	default:
		return fmt.Errorf("%s: expected a list, got %T", names[0], v)
	}
	return nil
}

// section returns a nested table such as tracing, with lowercased keys.
func (s fileSettings) section(name string) (fileSettings, error) {
	v, ok := s.find(name)
	if !ok {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected a table, got %T", name, v)
	}
	out := make(fileSettings, len(m))
	for k, val := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = val
	}
	return out, nil
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// parseSeconds reads durations from files, the environment and --duration.
// Bare numbers are fractional seconds.
func parseSeconds(v interface{}) (time.Duration, error) {
	if str, ok := v.(string); ok {
		str = strings.TrimSpace(str)
		if str == "" {
			return 0, nil
		}
		if _, err := strconv.ParseFloat(str, 64); err != nil {
			return time.ParseDuration(str)
		}
	}
	secs, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid seconds value %v", secs)
	}
	if math.Abs(secs) > float64(math.MaxInt64)/float64(time.Second) {
		return 0, fmt.Errorf("duration %v seconds is too large", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// mergeJSONHeaders decodes a JSON object of header names to values.
func mergeJSONHeaders(dst map[string]string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return fmt.Errorf("headers not json: %w", err)
	}
	for k, v := range decoded {
		key := http.CanonicalHeaderKey(strings.TrimSpace(k))
		if key == "" {
			return fmt.Errorf("header key cannot be empty")
		}
		switch val := v.(type) {
		case string:
			dst[key] = val
		case nil:
			dst[key] = ""
		default:
			dst[key] = fmt.Sprint(val)
		}
	}
	return nil
}
