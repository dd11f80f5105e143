package artifact

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"modeswitch/internal/mode"
)

// Transform derives new artifact content. Implementations must be pure:
// the same input always yields the same output and the input is not modified.
type Transform func(content []byte) ([]byte, error)

// markerData is passed to marker templates.
type markerData struct {
	Mode   string
	Token  string
	Tokens []string
}

// RenderMarker renders the marker template of a mode definition into a
// single line. Templates may use sprig functions, e.g. {{ .Mode | upper }}.
func RenderMarker(def mode.Definition) (string, error) {
	if strings.TrimSpace(def.Marker) == "" {
		return "", fmt.Errorf("mode %s: %w", def.Mode, ErrTransformUndefined)
	}

	tmpl, err := template.New(string(def.Mode)).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(def.Marker)
	if err != nil {
		return "", fmt.Errorf("mode %s: invalid marker template: %w", def.Mode, err)
	}

	data := markerData{Mode: string(def.Mode), Tokens: def.Tokens}
	if len(def.Tokens) > 0 {
		data.Token = def.Tokens[0]
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mode %s: rendering marker: %w", def.Mode, err)
	}

	line := strings.TrimRight(buf.String(), "\r\n")
	if strings.ContainsAny(line, "\r\n") {
		return "", fmt.Errorf("mode %s: marker must render to a single line", def.Mode)
	}
	return line, nil
}

// MarkerTransform prefixes content with a marker line. A leading "#!"
// interpreter line stays first. Content already carrying the marker in
// that position is returned unchanged.
func MarkerTransform(marker string) Transform {
	line := []byte(marker + "\n")
	return func(content []byte) ([]byte, error) {
		var shebang, rest []byte
		if bytes.HasPrefix(content, []byte("#!")) {
			if i := bytes.IndexByte(content, '\n'); i >= 0 {
				shebang, rest = content[:i+1], content[i+1:]
			} else {
				shebang, rest = append(append([]byte(nil), content...), '\n'), nil
			}
		} else {
			rest = content
		}

		if bytes.HasPrefix(rest, line) {
			return append([]byte(nil), content...), nil
		}

		out := make([]byte, 0, len(shebang)+len(line)+len(rest))
		out = append(out, shebang...)
		out = append(out, line...)
		out = append(out, rest...)
		return out, nil
	}
}
