package views

import (
	"time"

	"github.com/rivo/tview"

	"github.com/beingharisali/martchat/internal/model"
)

// ChatList is the main chat directory view (K9s-inspired table).
type ChatList struct {
	*tview.Table
	current model.User
	chats   []model.Chat
	online  func(userID string) bool
}

// NewChatList creates a new chat list table for the signed-in user.
func NewChatList(current model.User) *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")

	return &ChatList{Table: table, current: current}
}

// SetOnlineFunc sets the presence lookup used for the online indicator.
func (cl *ChatList) SetOnlineFunc(fn func(userID string) bool) {
	cl.online = fn
}

// Update refreshes the chat list with new data.
func (cl *ChatList) Update(chats []model.Chat) {
	cl.chats = chats
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i := range chats {
		c := &chats[i]
		row := i + 1

		name := model.ChatDisplayName(cl.current, c)
		if cl.isOnline(c) {
			name = "● " + name
		}
		if model.IsBlockedBy(cl.current, c) {
			name += " [blocked]"
		}
		if cl.hasUnread(c) {
			name = "* " + name
		}

		preview, ts := "", ""
		if m := c.LatestMessage; m != nil {
			preview = previewText(m)
			ts = formatTimestamp(m.CreatedAt)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(preview))).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+ts).SetMaxWidth(12))
	}
}

// SelectedChat returns a copy of the currently highlighted chat, or nil.
func (cl *ChatList) SelectedChat() *model.Chat {
	row, _ := cl.GetSelection()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.chats) {
		c := cl.chats[idx]
		return &c
	}
	return nil
}

func (cl *ChatList) isOnline(c *model.Chat) bool {
	if cl.online == nil {
		return false
	}
	other := model.Counterpart(cl.current, c)
	return other != nil && cl.online(other.ID)
}

func (cl *ChatList) hasUnread(c *model.Chat) bool {
	m := c.LatestMessage
	return m != nil && !m.IsRead && m.Sender.ID != cl.current.ID
}

func previewText(m *model.Message) string {
	if m.Content != "" {
		return m.Content
	}
	if m.FileName != "" {
		return "[file] " + m.FileName
	}
	return ""
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
