package config

import (
	"fmt"
	"io"
	"sort"

	"github.com/BurntSushi/toml"
)

// TOMLParser is an ff.ConfigFileParser. Nested tables are flattened into
// dashed flag names, so
//
//	[ap]
//	ssid = "Setup"
//
// sets the ap-ssid flag.
func TOMLParser(r io.Reader, set func(name, value string) error) error {
	var m map[string]any
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return fmt.Errorf("parsing toml: %w", err)
	}
	return setTable("", m, set)
}

func setTable(prefix string, m map[string]any, set func(name, value string) error) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "-" + k
		}
		if err := setValue(name, m[k], set); err != nil {
			return err
		}
	}
	return nil
}

func setValue(name string, v any, set func(name, value string) error) error {
	switch v := v.(type) {
	case map[string]any:
		return setTable(name, v, set)
	case []any:
		for _, item := range v {
			if err := setValue(name, item, set); err != nil {
				return err
			}
		}
		return nil
	case string:
		return set(name, v)
	default:
		return set(name, fmt.Sprint(v))
	}
}
