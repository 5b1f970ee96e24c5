// Package watcher reports changes to a fixed set of files, such as the
// index metadata and the corpus, so a long-running server can reload them.
//
// Parent directories are watched rather than the files themselves, so
// files replaced by rename or recreated after deletion keep reporting.
// Bursts of events are coalesced by a Debouncer and emitted as one batch
// of changed paths.
package watcher
