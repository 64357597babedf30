// Package main hosts the swinglab CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against swinglabd: enqueueing recordings, inspecting and maintaining the
// upload queue, tailing logs, and daemon lifecycle control. Queue maintenance
// commands fall back to direct store access when the daemon is not running.
package main
