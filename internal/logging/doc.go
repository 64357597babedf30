// Package logging builds the slog loggers used across swinglab and defines
// the standardized attribute keys components log with.
//
// Two output formats exist: a single-line console format for interactive use
// and JSON for machine consumption. NewFromConfig tees output to stdout plus
// a log file under the configured log directory. WithContext lifts job and
// correlation identifiers stamped via internal/services into log attributes.
package logging
