// Package workflow runs one job per submitted archive through the pipeline:
// extract, sort, upload, publish the link.
//
// The Coordinator owns an in-flight Registry keyed by artifact identity, so a
// second submission of an archive that is still running is answered
// synchronously with a skipped_duplicate ticket. Accepted jobs run in their own
// goroutine, bounded by a worker semaphore. Each stage is a step of an explicit
// state machine (queued, extracting, sorting, uploading, publishing_link, then
// done or failed) and every transition is appended to Job.History and handed
// to the registered observers: the history ledger, metrics, and
// notifications.
//
// Upload and link publication retry transient failures with bounded
// exponential backoff. Quota and permission errors fail the job at once.
// Every terminal state removes the scratch workspace unless cleanup is
// disabled.
package workflow
