package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/beingharisali/martchat/internal/model"
)

// MessageView displays the message history of the open chat.
type MessageView struct {
	*tview.TextView
	current model.User
}

// NewMessageView creates a new message view for the signed-in user.
func NewMessageView(current model.User) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv, current: current}
}

// SetChatName updates the title with the chat name.
func (mv *MessageView) SetChatName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// Update refreshes the view with messages in display order (oldest first).
func (mv *MessageView) Update(msgs []model.Message) {
	mv.Clear()

	for i := range msgs {
		m := &msgs[i]
		sender := m.Sender.FullName()
		if m.Sender.ID == mv.current.ID {
			sender = "You"
		}

		body := tview.Escape(sanitizeForTerminal(m.Content))
		if m.FileURL != "" {
			attachment := fmt.Sprintf("[::d][file: %s][-:-:-]", tview.Escape(m.FileName))
			if body == "" {
				body = attachment
			} else {
				body += "\n" + attachment
			}
		}

		ts := formatTimestamp(m.CreatedAt)
		_, _ = fmt.Fprintf(mv, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n", tview.Escape(sender), ts, body)
	}

	mv.ScrollToEnd()
}
