// Package config loads, normalizes, and validates swinglab configuration.
//
// Configuration comes from a TOML file (default ~/.config/swinglab/config.toml,
// or swinglab.toml in the working directory) layered over compiled defaults.
// All path fields are tilde-expanded and made absolute during Load so the rest
// of the codebase never deals with relative or home-anchored paths.
package config
