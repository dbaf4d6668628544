// Package events decouples producers from the task pipeline. Producers emit
// TaskRequestEvents describing work to be done; the task package registers a
// handler that turns those events into queued pipeline tasks. Neither side
// imports the other directly.
package events
