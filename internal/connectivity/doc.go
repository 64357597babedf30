// Package connectivity tracks reachability of the remote analysis service.
//
// A monitor goroutine probes the service on an interval and publishes
// debounced edge events: subscribers hear about transitions, never repeated
// levels. Raw network reachability alone does not count as connected; the
// service must also answer its health endpoint.
package connectivity
