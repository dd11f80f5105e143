package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// reservedModeNames cannot be used for configured modes.
var reservedModeNames = map[string]bool{"unknown": true}

// Validate checks the configuration and returns all problems found.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Service.InstalledPath) == "" {
		errs.Add("service.installedPath", "is required")
	}
	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		errs.Add("artifacts.dir", "is required")
	}
	if c.Service.OperationTimeout <= 0 {
		errs.Add("service.operationTimeout", "must be positive", c.Service.OperationTimeout)
	}
	if c.Settle.Stop < 0 {
		errs.Add("settle.stop", "must not be negative", c.Settle.Stop)
	}
	if c.Settle.Start < 0 {
		errs.Add("settle.start", "must not be negative", c.Settle.Start)
	}

	switch c.Service.Manager {
	case ManagerAuto, ManagerSystemd, ManagerSystemctl, "":
		if strings.TrimSpace(c.Service.Unit) == "" {
			errs.Add("service.unit", "is required for service manager "+string(c.Service.Manager))
		}
	case ManagerScript:
		if strings.TrimSpace(c.Service.Script.Path) == "" {
			errs.Add("service.script.path", "is required when service.manager is script")
		}
	default:
		errs.Add("service.manager", "must be one of auto, systemd, systemctl, script", c.Service.Manager)
	}

	if len(c.Modes) < 2 {
		errs.Add("modes", "at least two modes are required", len(c.Modes))
	}

	seen := make(map[string]bool)
	factoryFound := false
	for i, m := range c.Modes {
		field := fmt.Sprintf("modes[%d]", i)
		name := strings.TrimSpace(m.Name)
		switch {
		case name == "":
			errs.Add(field+".name", "is required")
			continue
		case name != m.Name || strings.ContainsAny(name, "/\\ "):
			errs.Add(field+".name", "must not contain whitespace or path separators", m.Name)
		case reservedModeNames[strings.ToLower(name)]:
			errs.Add(field+".name", "is reserved", m.Name)
		}
		if seen[name] {
			errs.Add(field+".name", "is duplicated", m.Name)
		}
		seen[name] = true

		if name == c.FactoryMode {
			factoryFound = true
			if len(m.Tokens) > 0 {
				errs.Add(field+".tokens", "the factory mode is detected by the absence of other tokens and takes none")
			}
			continue
		}
		if len(m.Tokens) == 0 {
			errs.Add(field+".tokens", "at least one detection token is required for a non-factory mode")
		}
		for j, tok := range m.Tokens {
			if strings.TrimSpace(tok) == "" {
				errs.Add(fmt.Sprintf("%s.tokens[%d]", field, j), "must not be empty")
			}
		}
	}

	if strings.TrimSpace(c.FactoryMode) == "" {
		errs.Add("factoryMode", "is required")
	} else if !factoryFound {
		errs.Add("factoryMode", "must name one of the configured modes", c.FactoryMode)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
