// Package preflight validates the runtime environment before the daemon
// starts processing: directory access and the free-space floor.
package preflight
