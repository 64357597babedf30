// Package notifications delivers queue events to an ntfy topic.
//
// Delivery is fire-and-forget from the queue's perspective; callers log
// failures and move on. Without a configured topic the service degrades to a
// noop implementation.
package notifications
