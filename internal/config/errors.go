package config

import "fmt"

// LoadError describes a failure to load a configuration file.
type LoadError struct {
	FilePath  string // Full path to the file that caused the error
	ErrorType string // Type of error (io, parse, validation)
	Err       error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	return fmt.Sprintf("%s error loading config from %s: %v", e.ErrorType, e.FilePath, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
