// Package analysis wraps the remote swing-analysis HTTP API.
//
// A call uploads a recording, then polls the service until the analysis
// completes. Failures carry a FailureKind so the queue can distinguish
// transport trouble from server rejection.
package analysis
