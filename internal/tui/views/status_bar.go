package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays persistent profile and connection status, the key
// hints for the current page and any transient flash message.
type StatusBar struct {
	*tview.TextView
	profile   string
	connected bool
	state     string
	online    int
	hints     string
	flash     string
	flashErr  bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetConnected updates the live connection indicator.
func (sb *StatusBar) SetConnected(connected bool) {
	sb.connected = connected
	sb.render()
}

// SetState updates the open-chat state display.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetOnline updates the online user count.
func (sb *StatusBar) SetOnline(count int) {
	sb.online = count
	sb.render()
}

// SetHints updates the key hint line for the active page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = strings.Join(hints, "  ")
	sb.render()
}

// SetFlash sets a temporary message; failures render in red.
func (sb *StatusBar) SetFlash(msg string, isErr bool) {
	sb.flash = msg
	sb.flashErr = isErr
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	conn := "[red]offline[-]"
	if sb.connected {
		conn = "[green]online[-]"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s | %d online | %s", sb.profile, conn, sb.state, sb.online, clock)
	if sb.hints != "" {
		line += fmt.Sprintf(" | [::d]%s[-:-:-]", sb.hints)
	}
	if sb.flash != "" {
		color := "yellow"
		if sb.flashErr {
			color = "red"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", color, tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
