// Package file provides the file-based settings adapter: TOML-backed
// storage of operator preferences and connection targets, with
// GLIMMER_* environment overrides applied on read.
package file
