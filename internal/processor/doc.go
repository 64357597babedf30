// Package processor orchestrates the upload-and-analysis queue.
//
// A single drain goroutine advances pending jobs through the remote analysis
// service one at a time; concurrent drain requests coalesce into the running
// pass. Connectivity loss and cancellation roll the active job back to
// pending, remote rejection marks it failed until an explicit retry.
package processor
