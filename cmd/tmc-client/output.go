package main

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	default:
		return &usageError{msg: fmt.Sprintf("unknown output format %q (want json or yaml)", format)}
	}
}

// print writes v to stdout in the selected format.
func (a *app) print(v any) error {
	if a.format == formatYAML {
		return a.printYAML(v)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(v)
}

// printYAML round-trips v through JSON first so YAML keys match the
// API field names rather than lowercased Go field names.
func (a *app) printYAML(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)

	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	return enc.Close()
}

// usageError is a bad command line, reported with exit status 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func missingArg(name string) error {
	return &usageError{msg: "missing " + name + " argument"}
}
