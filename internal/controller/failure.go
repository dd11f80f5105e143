package controller

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"modeswitch/internal/servicemgr"
)

func newFailure(kind FailureKind, format string, args ...interface{}) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// classifyFault maps an unexpected error from the stop/install/start steps
// onto the failure taxonomy.
func classifyFault(err error) *Failure {
	var f *Failure
	switch {
	case err == nil:
		return nil
	case errors.As(err, &f):
		return f
	case errors.Is(err, servicemgr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return newFailure(KindServiceManagerFault, "timed out: %v", err)
	case errors.Is(err, context.Canceled):
		return newFailure(KindServiceManagerFault, "cancelled: %v", err)
	case servicemgr.IsOperationError(err):
		return newFailure(KindServiceManagerFault, "%v", err)
	case isFilesystemError(err):
		return newFailure(KindInstallFault, "%v", err)
	default:
		return newFailure(KindUnknown, "%v", err)
	}
}

func isFilesystemError(err error) bool {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	return errors.As(err, &pathErr) || errors.As(err, &linkErr) || errors.Is(err, fs.ErrPermission)
}
