// Package heartbeat provides a file-based liveness oracle. Each active
// worker refreshes a small heartbeat file on a fixed interval; any observer
// judges the worker alive or dead from the file's recorded timestamp without
// contacting the worker. A worker that dies leaves a stale file behind, and
// that staleness is the detection signal.
package heartbeat
