// Package cache keeps recently generated sample buffers in memory so that
// replaying the same tone or design does not synthesize it again.
package cache
