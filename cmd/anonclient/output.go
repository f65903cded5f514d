package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// printer writes command results in the format chosen with --output
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case outputText, outputJSON, outputYAML:
		return &printer{w: w, format: format}, nil
	case "":
		return &printer{w: w, format: outputText}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: text, json, yaml)", format)
	}
}

// print writes data as JSON or YAML, or calls text for the human readable form
func (p *printer) print(data any, text func(w io.Writer)) error {
	switch p.format {
	case outputJSON:
		encoder := json.NewEncoder(p.w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case outputYAML:
		encoder := yaml.NewEncoder(p.w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(data)
	default:
		text(p.w)
		return nil
	}
}

// status is the structured form of a one line confirmation
type status struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
}

func (p *printer) status(state, message string) error {
	return p.print(status{Status: state, Message: message}, func(w io.Writer) {
		fmt.Fprintln(w, message)
	})
}
