// Package jobs is the background execution layer for the notification
// engine: a storage-backed task queue with at-least-once semantics.
//
// Three moving parts:
//   - Enqueuer persists one-off tasks (payload marshaled to JSON, task name
//     derived from the payload type unless overridden).
//   - Worker claims tasks atomically, runs the registered handler with panic
//     recovery, and retries failed tasks with linear backoff until the
//     task's retry budget is spent.
//   - Scheduler creates periodic tasks from cron expressions, skipping
//     creation while an identical task is still pending so concurrent
//     schedulers never double-book a run.
//
// The queue's retry budget covers crashed or timed-out executions. It is
// independent of any retry decision the handler itself makes about the
// errors it sees; a handler that considers an error permanent should swallow
// it and report the failure through its own domain state.
package jobs
