//go:build windows

package servicemgr

import "os/exec"

// configureProcAttr leaves cmd as is; exec.CommandContext kills the
// direct child on cancellation.
func configureProcAttr(cmd *exec.Cmd) {}
