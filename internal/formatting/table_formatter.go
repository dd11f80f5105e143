package formatting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"modeswitch/internal/controller"
)

// maxCellLen bounds free-text cells such as step details.
const maxCellLen = 100

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	w       io.Writer
	options Options
}

// Status renders the current mode followed by the artifact sources.
func (f *TableFormatter) Status(st controller.Status) error {
	t := f.createTable()
	t.SetTitle("Service status")

	modeCell := string(st.CurrentMode)
	if st.Phase == controller.PhaseSwitching {
		modeCell = f.color(text.FgYellow, fmt.Sprintf("switching to %s (%s)", st.SwitchTarget, st.SwitchState))
	} else if st.Confidence == controller.ConfidenceUnknown {
		modeCell = f.color(text.FgRed, modeCell)
	}

	t.AppendRows([]table.Row{
		{f.key("MODE"), modeCell},
		{f.key("CONFIDENCE"), string(st.Confidence)},
		{f.key("SERVICE"), f.active(st.ServiceActive)},
	})
	if st.ServiceError != "" {
		t.AppendRow(table.Row{f.key("SERVICE ERROR"), f.color(text.FgRed, st.ServiceError)})
	}
	if st.Manager != "" {
		t.AppendRow(table.Row{f.key("MANAGER"), st.Manager})
	}
	t.AppendRow(table.Row{f.key("ARTIFACTS"), joinModes(st.KnownArtifacts)})
	if st.LastResult != nil {
		t.AppendRow(table.Row{f.key("LAST SWITCH"), summarizeSwitch(*st.LastResult)})
	}
	t.Render()

	if len(st.Sources) == 0 {
		return nil
	}

	s := f.createTable()
	s.AppendHeader(table.Row{f.key("MODE"), f.key("STORED"), f.key("ORIGIN"), f.key("AUTHORED PATH"), f.key("AUTHORED")})
	for _, src := range st.Sources {
		s.AppendRow(table.Row{
			string(src.Mode),
			yesNo(src.Stored),
			string(src.StoredOrigin),
			src.AuthoredPath,
			yesNo(src.AuthoredExist),
		})
	}
	s.Render()
	return nil
}

// SwitchResult renders the outcome of a switch and its steps.
func (f *TableFormatter) SwitchResult(res controller.SwitchResult) error {
	t := f.createTable()
	if res.Succeeded {
		t.SetTitle(f.color(text.FgGreen, fmt.Sprintf("Switched to %s", res.RequestedMode)))
	} else {
		t.SetTitle(f.color(text.FgRed, fmt.Sprintf("Switch to %s failed", res.RequestedMode)))
	}

	t.AppendRows([]table.Row{
		{f.key("REQUEST"), res.RequestID},
		{f.key("PREVIOUS"), string(res.PreviousMode)},
		{f.key("RESULT"), string(res.ResultingMode)},
		{f.key("SERVICE"), f.active(res.ServiceActive)},
		{f.key("DURATION"), res.Duration.Round(time.Millisecond).String()},
	})
	if res.Error != nil {
		t.AppendRow(table.Row{f.key("ERROR"), f.color(text.FgRed, res.Error.Error())})
	}
	t.Render()

	if len(res.Steps) == 0 {
		return nil
	}

	s := f.createTable()
	s.AppendHeader(table.Row{f.key("STEP"), f.key("OUTCOME"), f.key("DURATION"), f.key("DETAIL")})
	for _, step := range res.Steps {
		s.AppendRow(table.Row{
			string(step.State),
			f.outcome(step.Outcome),
			step.Duration.Round(time.Millisecond).String(),
			text.Snip(step.Detail, maxCellLen, "..."),
		})
	}
	s.Render()
	return nil
}

// RestartResult renders the outcome of a restart.
func (f *TableFormatter) RestartResult(res controller.RestartResult) error {
	t := f.createTable()
	t.AppendRow(table.Row{f.key("SERVICE"), f.active(res.ServiceActive)})
	if res.Error != nil {
		t.AppendRow(table.Row{f.key("ERROR"), f.color(text.FgRed, res.Error.Error())})
	}
	t.Render()
	return nil
}

// SetupResult renders the artifact setup outcome.
func (f *TableFormatter) SetupResult(res controller.SetupResult) error {
	t := f.createTable()
	t.AppendRow(table.Row{f.key("OK"), yesNo(res.OK)})
	t.AppendRow(table.Row{f.key("AVAILABLE"), joinModes(res.ModesAvailable)})
	if res.Error != nil {
		t.AppendRow(table.Row{f.key("ERROR"), f.color(text.FgRed, res.Error.Error())})
	}
	for _, e := range res.Errors {
		t.AppendRow(table.Row{f.key("PROBLEM"), f.color(text.FgYellow, e)})
	}
	t.Render()
	return nil
}

// Modes renders the configured modes.
func (f *TableFormatter) Modes(modes []controller.ModeInfo) error {
	if len(modes) == 0 {
		_, err := fmt.Fprintln(f.w, f.color(text.FgYellow, "No modes configured"))
		return err
	}

	t := f.createTable()
	t.AppendHeader(table.Row{f.key("NAME"), f.key("FACTORY"), f.key("TOKENS"), f.key("AUTHORED PATH")})
	for _, m := range modes {
		t.AppendRow(table.Row{string(m.Name), yesNo(m.Factory), strings.Join(m.Tokens, ", "), m.AuthoredPath})
	}
	t.Render()
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.w)
	t.SetStyle(table.StyleRounded)
	if f.options.NoColor {
		t.Style().Color = table.ColorOptions{}
	}
	return t
}

func (f *TableFormatter) color(c text.Color, s string) string {
	if f.options.NoColor {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) key(s string) string {
	return f.color(text.FgHiCyan, s)
}

func (f *TableFormatter) active(active bool) string {
	if active {
		return f.color(text.FgGreen, "active")
	}
	return f.color(text.FgRed, "inactive")
}

func (f *TableFormatter) outcome(o string) string {
	switch o {
	case "ok":
		return f.color(text.FgGreen, o)
	case "failed":
		return f.color(text.FgRed, o)
	default:
		return f.color(text.FgYellow, o)
	}
}
