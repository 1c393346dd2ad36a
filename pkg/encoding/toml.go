// Package encoding provides small helpers for loading structured
// configuration files.
package encoding

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadAndUnmarshal reads the file at path and invokes unmarshal on its
// contents. A missing file is reported via the returned error unchanged so
// that callers can distinguish "no config" from "bad config" with
// os.IsNotExist.
func LoadAndUnmarshal(path string, unmarshal func([]byte) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("unable to load file: %w", err)
	}
	if err := unmarshal(data); err != nil {
		return fmt.Errorf("unable to unmarshal data: %w", err)
	}
	return nil
}

// LoadAndUnmarshalTOML loads data from the specified path and decodes it into
// the specified structure.
func LoadAndUnmarshalTOML(path string, value interface{}) error {
	return LoadAndUnmarshal(path, func(data []byte) error {
		return toml.Unmarshal(data, value)
	})
}
