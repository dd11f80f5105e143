// Package controller implements the mode switch controller.
//
// A Controller owns the artifact store, the mode detector and the service
// manager handle, and drives a switch through a strictly sequential
// protocol:
//
//	Idle → Detecting → Stopping → Installing → Starting → Verifying → {Succeeded, Failed}
//
// Only one switch (or restart, or artifact setup) runs at a time. A caller
// arriving while one is in flight gets an immediate Busy result instead of
// waiting. Status queries never block on a switch; while one is running
// they report a transitional status rather than a half-installed mode.
//
// Every failure is returned as a structured Failure inside the result.
// Whatever goes wrong after the service was stopped, the controller makes a
// final attempt to start it again before reporting.
package controller
