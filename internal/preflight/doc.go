// Package preflight provides readiness checks for the filesystem paths and
// the remote analysis service swinglab depends on.
//
// The daemon runs RunAll at startup and refuses to start on a failed
// directory check; the CLI status command reuses the individual checks to
// display service health.
package preflight
