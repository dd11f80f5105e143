// Package servicemgr controls the managed service.
//
// Manager is the narrow contract the mode switch controller consumes:
// stop, start, restart and an activity query. Three adapters implement it:
//
//   - Systemd talks to systemd over D-Bus and waits for the queued job;
//   - Systemctl runs "[sudo] systemctl <verb> <unit>";
//   - Script runs an operator-supplied toggle script with per-verb
//     arguments and no standard input.
//
// Every operation is bounded by the caller's context. The exec-based
// adapters kill the child process when the context expires.
package servicemgr
