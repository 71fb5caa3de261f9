// Package daemon wires the workflow manager into a supervised background
// process: single-instance locking, periodic reclaim sweeps across every
// queue, and fleet heartbeat checks.
package daemon
