// Package cliutil provides shared helpers for portwayctl commands: global
// flag state, store construction, and output-format dispatch.
package cliutil

import (
	"fmt"
	"io"
	"os"

	"github.com/melosso/portway/internal/cliutil/output"
	"github.com/melosso/portway/internal/config"
	"github.com/melosso/portway/pkg/authcore"
	"github.com/melosso/portway/pkg/management"
)

// GlobalFlags holds portwayctl's persistent flag values.
type GlobalFlags struct {
	ConfigFile string
	Output     string
}

// Flags is the process-wide global flag state, populated by cobra in root.go.
var Flags = &GlobalFlags{}

// LoadConfig loads the gateway config portwayctl operates against.
func LoadConfig() (*config.Config, error) {
	return config.MustLoad(Flags.ConfigFile)
}

// OpenTokenStore loads config and opens the token store it points at.
func OpenTokenStore() (*authcore.Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return authcore.NewStore(cfg.TokenStore)
}

// OpenManagementStore loads config and opens the management record store.
func OpenManagementStore() (*management.Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return management.NewStore(cfg.TokenStore, cfg.Management)
}

// OutputFormat parses the --output flag.
func OutputFormat() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// PrintResource renders data as the configured output format: JSON verbatim,
// or table via tableRenderer.
func PrintResource(w io.Writer, data any, tableRenderer output.TableRenderer) error {
	format, err := OutputFormat()
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		return output.PrintJSON(w, data)
	}
	return output.PrintTable(w, tableRenderer)
}

// PrintSuccess prints a success message, only in table mode (JSON mode is
// meant to be piped/parsed).
func PrintSuccess(msg string) {
	format, err := OutputFormat()
	if err != nil || format != output.FormatTable {
		return
	}
	fmt.Fprintln(os.Stdout, msg)
}

// BoolToYesNo renders a bool for table display.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns value, or fallback when value is empty.
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
