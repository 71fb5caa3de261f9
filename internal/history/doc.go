// Package history archives finished queue item outcomes in SQLite for
// operator reporting. It is write-behind bookkeeping: authoritative queue
// state stays on the filesystem.
package history
