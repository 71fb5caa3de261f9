// Command capstan is the operator CLI for inspecting queues, checkpoints,
// heartbeats, and archived outcomes. It reads coordination state directly
// from the filesystem, so it works whether or not capstand is running.
package main
