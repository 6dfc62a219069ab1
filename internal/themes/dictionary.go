package themes

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pulpit/internal/validate"
)

//go:embed default_themes.yaml
var defaultDictionary []byte

// ThemeDef declares one theme and the keywords that signal it.
type ThemeDef struct {
	Name     string   `yaml:"name" validate:"required"`
	Label    string   `yaml:"label"`
	Weight   float64  `yaml:"weight" validate:"gt=0"`
	Keywords []string `yaml:"keywords" validate:"min=1,dive,required"`
}

// Dictionary is an ordered list of theme definitions.
type Dictionary struct {
	Themes []ThemeDef `yaml:"themes" validate:"min=1,unique=Name,dive"`
}

// Names returns theme names in declaration order.
func (d Dictionary) Names() []string {
	out := make([]string, len(d.Themes))
	for i, def := range d.Themes {
		out[i] = def.Name
	}
	return out
}

// DefaultDictionary returns the embedded dictionary.
func DefaultDictionary() Dictionary {
	dict, err := ParseDictionary(defaultDictionary)
	if err != nil {
		panic(fmt.Sprintf("themes: embedded dictionary invalid: %v", err))
	}
	return dict
}

// LoadDictionary reads a dictionary file. An empty path returns the default.
func LoadDictionary(path string) (Dictionary, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDictionary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Dictionary{}, fmt.Errorf("read theme dictionary: %w", err)
	}
	dict, err := ParseDictionary(data)
	if err != nil {
		return Dictionary{}, fmt.Errorf("theme dictionary %s: %w", path, err)
	}
	return dict, nil
}

// ParseDictionary decodes and validates YAML dictionary data. Unknown keys
// are rejected. A theme without a weight gets weight 1.
func ParseDictionary(data []byte) (Dictionary, error) {
	var dict Dictionary
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&dict); err != nil {
		if errors.Is(err, io.EOF) {
			return Dictionary{}, errors.New("empty dictionary")
		}
		return Dictionary{}, fmt.Errorf("decode dictionary: %w", err)
	}
	for i := range dict.Themes {
		def := &dict.Themes[i]
		def.Name = strings.TrimSpace(def.Name)
		if def.Weight == 0 {
			def.Weight = 1
		}
		for j, kw := range def.Keywords {
			def.Keywords[j] = strings.TrimSpace(kw)
		}
	}
	if err := validate.Struct(dict); err != nil {
		return Dictionary{}, fmt.Errorf("invalid dictionary: %w", err)
	}
	return dict, nil
}
