// Package services defines shared helpers consumed by the processor and
// external integrations.
//
// Context helpers stamp queue job IDs and correlation identifiers so logging
// can attach them uniformly without each call site threading values by hand.
package services
