package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func (c *commandContext) outputFormat() string {
	if c.formatFlag == nil {
		return formatTable
	}
	format := strings.ToLower(strings.TrimSpace(*c.formatFlag))
	if format == "" {
		return formatTable
	}
	return format
}

func (c *commandContext) validateFormat() error {
	switch c.outputFormat() {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported --format %q (want table, json or yaml)", *c.formatFlag)
	}
}

// emit writes v as JSON or YAML, or calls human for the table format.
func (c *commandContext) emit(cmd *cobra.Command, v any, human func(io.Writer) error) error {
	switch c.outputFormat() {
	case formatJSON:
		return writeJSON(cmd, v)
	case formatYAML:
		return writeYAML(cmd, v)
	default:
		return human(cmd.OutOrStdout())
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML encodes v as YAML to the command's stdout.
func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
