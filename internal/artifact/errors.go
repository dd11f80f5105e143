package artifact

import "errors"

var (
	// ErrSourceMissing is returned by Capture when there is no installed artifact.
	ErrSourceMissing = errors.New("installed artifact does not exist")

	// ErrSourceNotCaptured is returned by Synthesize when the source mode has no stored artifact.
	ErrSourceNotCaptured = errors.New("source artifact has not been captured")

	// ErrNotFound is returned by Get when no artifact is available for a mode.
	ErrNotFound = errors.New("artifact not found")

	// ErrTransformUndefined is returned when a mode has no synthesis path.
	ErrTransformUndefined = errors.New("no synthesis transform defined")

	// ErrModeMismatch is returned when content does not classify as the mode it is stored for.
	ErrModeMismatch = errors.New("artifact content does not match mode")
)
