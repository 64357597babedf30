// Package logs provides log file tailing shared by the CLI and the IPC
// LogTail handler.
//
// It supports negative offsets for "last N lines" reads, offset-based
// resumption for follow mode, and bounded polling controlled by the caller's
// context so `swinglab logs --follow` shuts down cleanly.
package logs
