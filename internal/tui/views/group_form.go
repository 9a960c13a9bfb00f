package views

import (
	"strings"

	"github.com/rivo/tview"
)

// GroupForm collects a name and member ids for a new group chat.
type GroupForm struct {
	*tview.Form
	onCreate func(name string, memberIDs []string)
	onCancel func()
}

// NewGroupForm creates the group creation form.
func NewGroupForm() *GroupForm {
	form := tview.NewForm()
	form.SetBorder(true).SetTitle(" New Group ")

	gf := &GroupForm{Form: form}

	form.AddInputField("Name", "", 40, nil, nil)
	form.AddInputField("Members (user ids, comma separated)", "", 60, nil, nil)
	form.AddButton("Create", func() {
		if gf.onCreate == nil {
			return
		}
		name := form.GetFormItemByLabel("Name").(*tview.InputField).GetText()
		members := form.GetFormItemByLabel("Members (user ids, comma separated)").(*tview.InputField).GetText()
		gf.onCreate(strings.TrimSpace(name), splitIDs(members))
	})
	form.AddButton("Cancel", func() {
		if gf.onCancel != nil {
			gf.onCancel()
		}
	})

	return gf
}

// SetOnCreate sets the callback when the form is submitted.
func (gf *GroupForm) SetOnCreate(fn func(name string, memberIDs []string)) {
	gf.onCreate = fn
}

// SetOnCancel sets the callback when the form is dismissed.
func (gf *GroupForm) SetOnCancel(fn func()) {
	gf.onCancel = fn
}

// Reset clears the form fields.
func (gf *GroupForm) Reset() {
	gf.GetFormItemByLabel("Name").(*tview.InputField).SetText("")
	gf.GetFormItemByLabel("Members (user ids, comma separated)").(*tview.InputField).SetText("")
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
