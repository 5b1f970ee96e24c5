// Package configs provides the embedded configuration template for smre.
//
// The template is embedded at build time so `smre config init` works from
// any distribution. It documents every key the loader understands; see
// internal/config for the layering and environment overrides.
package configs

import _ "embed"

// ConfigTemplate is written by `smre config init` to the user config path
// (~/.config/smre/config.yaml or $XDG_CONFIG_HOME/smre/config.yaml).
//
//go:embed config.example.yaml
var ConfigTemplate string
