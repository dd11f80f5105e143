// Package watcher reports out-of-band changes to artifact files.
//
// A Watcher monitors a fixed set of files through their parent directories
// using fsnotify, so files replaced by rename are still seen. When fsnotify
// is unavailable it falls back to polling modification times. Change
// notifications are debounced per file.
package watcher
