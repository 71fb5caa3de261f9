// Package checkpoint persists per-job progress so a restarted batch job
// resumes where it left off: completed units are skipped, failed units are
// retried. The whole document is rewritten through a temp file and atomic
// rename on every save, so a crash mid-write can never surface a half-written
// checkpoint.
package checkpoint
