// Package file provides the TOML-based configuration store. The engine
// configuration, including the institution's category and matcher
// declarations and the allow-list, lives in a single config.toml that
// operators edit by hand or through `deid config`.
package file
