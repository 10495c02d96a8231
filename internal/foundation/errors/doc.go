// Package errors provides the classified error primitives used across sitebuilder.
//
// A ClassifiedError carries a category (config, content, template, asset, ...),
// a severity and a context map, so that the CLI can choose an exit code and the
// development server can render a readable error overlay from the same value.
//
// Example usage:
//
//	err := errors.ConfigError("malformed theme config").
//		WithContext("file", path).
//		WithCause(parseErr).
//		Build()
package errors
