package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/beingharisali/martchat/internal/model"
)

// Composer is the input line for outgoing messages. A pending attachment
// rides along with the next submit; a message goes out when it carries
// text, an attachment, or both, and submitting clears both.
type Composer struct {
	*tview.InputField
	onSend func(text string, att *model.Attachment)
	att    *model.Attachment
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		text := c.GetText()
		att := c.att
		if text == "" && att == nil {
			return
		}
		c.onSend(text, att)
		c.SetText("")
		c.SetAttachment(nil)
	})

	return c
}

// SetOnSend sets the callback when a message is submitted.
func (c *Composer) SetOnSend(fn func(text string, att *model.Attachment)) {
	c.onSend = fn
}

// SetAttachment stages a file for the next message, or clears the staged
// one when att is nil. The label shows what is pending.
func (c *Composer) SetAttachment(att *model.Attachment) {
	c.att = att
	if att == nil {
		c.SetLabel(" > ")
		return
	}
	c.SetLabel(" [" + att.Name + "] > ")
}

// Attachment returns the staged attachment, or nil.
func (c *Composer) Attachment() *model.Attachment {
	return c.att
}
