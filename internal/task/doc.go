// Package task implements the asynchronous avatar-creation pipeline: the
// durable work queue contract, the task runner that recovers and executes
// queued jobs, and the multi-stage avatar creation task itself.
package task
