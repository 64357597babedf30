// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs shared
// between swinglabd and the swinglab command. The server embeds the daemon
// facade; the client dials with a short timeout so CLI commands fail fast
// when the daemon is not running.
package ipc
