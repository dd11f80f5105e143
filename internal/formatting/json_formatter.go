package formatting

import (
	"encoding/json"
	"io"

	"modeswitch/internal/controller"
)

// JSONFormatter writes results as indented JSON, matching the HTTP API.
type JSONFormatter struct {
	w io.Writer
}

func (f *JSONFormatter) write(v interface{}) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *JSONFormatter) Status(st controller.Status) error { return f.write(st) }

func (f *JSONFormatter) SwitchResult(res controller.SwitchResult) error { return f.write(res) }

func (f *JSONFormatter) RestartResult(res controller.RestartResult) error { return f.write(res) }

func (f *JSONFormatter) SetupResult(res controller.SetupResult) error { return f.write(res) }

func (f *JSONFormatter) Modes(modes []controller.ModeInfo) error { return f.write(modes) }
