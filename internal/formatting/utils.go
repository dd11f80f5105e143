package formatting

import (
	"encoding/json"
	"fmt"
	"strings"

	"modeswitch/internal/controller"
	"modeswitch/internal/mode"
)

// PrettyJSON formats any value as indented JSON for human-readable display.
// It falls back to fmt.Sprintf when the value cannot be marshaled.
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func joinModes(modes []mode.Mode) string {
	if len(modes) == 0 {
		return "-"
	}
	names := make([]string, 0, len(modes))
	for _, m := range modes {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// summarizeSwitch renders a one-line description of a switch result.
func summarizeSwitch(res controller.SwitchResult) string {
	if res.Succeeded {
		return fmt.Sprintf("%s succeeded at %s", res.RequestedMode, res.StartedAt.Format("2006-01-02 15:04:05"))
	}
	kind := "failed"
	if res.Error != nil {
		kind = string(res.Error.Kind)
	}
	return fmt.Sprintf("%s failed (%s) at %s", res.RequestedMode, kind, res.StartedAt.Format("2006-01-02 15:04:05"))
}
