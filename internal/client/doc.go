// Package client talks to a running modeswitch server over its HTTP API.
package client
