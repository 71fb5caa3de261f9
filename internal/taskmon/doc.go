// Package taskmon tracks the wall-clock age of in-flight work units inside a
// single process and flags units that have exceeded their expected duration.
// It is the in-process complement to the cross-process heartbeat monitor:
// heartbeats tell a supervisor the process is alive, taskmon tells the
// process itself which unit is stuck.
package taskmon
