// Package daemon composes the queue store, processor, and connectivity
// monitor into the long-running swinglabd service.
//
// It enforces single-instance execution with a lock file, resets interrupted
// jobs at startup, and wires connectivity edges to the processor: a restored
// edge kicks a drain, a lost edge cancels the in-flight call immediately
// instead of waiting out a slow timeout.
package daemon
