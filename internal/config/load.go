package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dqc/internal/rules"
)

// Format is the syntax of a suite document.
type Format int

const (
	FormatYAML Format = iota
	FormatCUE
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatCUE:
		return "cue"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatForPath picks the document format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return 0, fmt.Errorf("unsupported suite file extension %q (want .yaml, .yml or .cue)", filepath.Ext(path))
	}
}

// Load reads, validates and builds the suite at path. Any validation problem
// is returned as a *SchemaError listing all of them.
func Load(path string) (*rules.Suite, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	suite, err := Parse(data, format)
	if se, ok := err.(*SchemaError); ok {
		se.Path = path
	}
	return suite, err
}

// Parse validates and builds a suite from an in-memory document.
func Parse(data []byte, format Format) (*rules.Suite, error) {
	suite, errs := parse(data, format)
	if len(errs) > 0 {
		return nil, &SchemaError{Errors: errs}
	}
	return suite, nil
}

// Validate reports every problem in a document without returning the suite.
// An empty result means the document is valid.
func Validate(data []byte, format Format) []ValidationError {
	_, errs := parse(data, format)
	return errs
}

func parse(data []byte, format Format) (*rules.Suite, []ValidationError) {
	b := &builder{}
	if format == FormatCUE {
		converted, errs := cueToYAML(data)
		if len(errs) > 0 {
			return nil, errs
		}
		data = converted
		b.noLines = true
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, []ValidationError{{
			Field:   "document",
			Message: err.Error(),
			Code:    ErrDocumentShape,
		}}
	}

	suite := b.build(&root)
	if len(b.errs) > 0 {
		return nil, b.errs
	}
	return suite, nil
}
