package tui

import (
	"context"
	"path"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/directory"
	"github.com/beingharisali/martchat/internal/messagelog"
	"github.com/beingharisali/martchat/internal/model"
	"github.com/beingharisali/martchat/internal/status"
	"github.com/beingharisali/martchat/internal/tui/keys"
	tuimodel "github.com/beingharisali/martchat/internal/tui/model"
	"github.com/beingharisali/martchat/internal/tui/views"
)

const (
	flashDuration = 5 * time.Second
	actionTimeout = 15 * time.Second
)

// UserSearcher finds chat counterparts by name or email.
type UserSearcher interface {
	SearchUsers(ctx context.Context, searchQuery string) ([]model.User, error)
}

// App is the main TUI application shell. All mutations go through the
// directory store and the message log; the app only renders their state and
// redraws on bus events.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	root     *tview.Flex
	dir      *directory.Store
	log      *messagelog.Log
	bus      *bus.Bus
	searcher UserSearcher
	flash    *tuimodel.Flash
	registry *keys.Registry

	statusBar *views.StatusBar
	chatList  *views.ChatList
	msgView   *views.MessageView
	composer  *views.Composer
	searchV   *views.SearchView
	groupForm *views.GroupForm
	cmdInput  *tview.InputField

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(dir *directory.Store, log *messagelog.Log, b *bus.Bus, searcher UserSearcher, profileName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	user := dir.User()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		dir:       dir,
		log:       log,
		bus:       b,
		searcher:  searcher,
		flash:     &tuimodel.Flash{},
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(),
		chatList:  views.NewChatList(user),
		msgView:   views.NewMessageView(user),
		composer:  views.NewComposer(),
		searchV:   views.NewSearchView(),
		groupForm: views.NewGroupForm(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.chatList.SetOnlineFunc(dir.IsOnline)
	a.statusBar.SetProfile(profileName)
	a.statusBar.SetState(string(status.Closed))

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.statusBar.SetHints(a.registry.Hints("chats"))

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddPage("chats", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:search", Visible: true,
		Handler: func() { a.showSearch() },
	})
	a.registry.AddPage("chats", &keys.Action{
		Rune: 'g', Key: tcell.KeyRune,
		Description: "g:new group", Visible: true,
		Handler: func() { a.showGroupForm() },
	})
	a.registry.AddPage("chats", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:delete", Visible: true,
		Handler: func() { a.deleteSelected() },
	})
	a.registry.AddPage("chats", &keys.Action{
		Rune: 'b', Key: tcell.KeyRune,
		Description: "b:block", Visible: true,
		Handler: func() { a.toggleBlockSelected() },
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if chat := a.chatList.SelectedChat(); chat != nil {
			a.openChat(*chat)
		}
	})

	a.composer.SetOnSend(func(text string, att *model.Attachment) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
			defer cancel()
			if _, err := a.log.Send(ctx, text, att); err != nil {
				a.flashError("Send failed: " + err.Error())
			}
		}()
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
			defer cancel()
			users, err := a.searcher.SearchUsers(ctx, query)
			if err != nil {
				a.flashError("Search failed: " + err.Error())
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(users)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})

	a.searchV.Results().SetSelectedFunc(func(row, col int) {
		user := a.searchV.SelectedUser()
		if user == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
			defer cancel()
			chat, err := a.dir.CreateDirect(ctx, user.ID)
			if err != nil {
				a.flashError("Open chat failed: " + err.Error())
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.showChatPage(*chat)
			})
		}()
	})

	a.groupForm.SetOnCreate(func(name string, memberIDs []string) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
			defer cancel()
			if _, err := a.dir.CreateGroup(ctx, name, memberIDs); err != nil {
				a.flashError("Create group failed: " + err.Error())
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.groupForm.Reset()
				a.showChats()
			})
		}()
	})
	a.groupForm.SetOnCancel(func() { a.showChats() })
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("chats", a.chatList, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("search", a.searchV, true, false)
	a.pages.AddPage("group", a.groupForm, true, false)

	a.cmdInput = tview.NewInputField().SetLabel(" : ").SetFieldWidth(0)
	a.cmdInput.SetDoneFunc(func(key tcell.Key) {
		text := a.cmdInput.GetText()
		a.hideCommandLine()
		if key == tcell.KeyEnter && text != "" {
			a.runCommand(ParseCommand(text))
		}
	})

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.cmdInput, 0, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat":
				a.dir.ClearSelection()
				a.showChats()
				return nil
			case "search", "group":
				a.showChats()
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		if event.Key() == tcell.KeyRune && event.Rune() == ':' {
			a.showCommandLine()
			return nil
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

// runCommand dispatches a ':' command against the selected chat.
func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "rename":
		a.withSelected(func(ctx context.Context, chat model.Chat) error {
			return a.dir.Rename(ctx, chat.ID, cmd.Args)
		})
	case "add":
		a.withSelected(func(ctx context.Context, chat model.Chat) error {
			return a.dir.AddMember(ctx, chat.ID, cmd.Args)
		})
	case "remove":
		a.withSelected(func(ctx context.Context, chat model.Chat) error {
			return a.dir.RemoveMember(ctx, chat.ID, cmd.Args)
		})
	case "block":
		a.withSelected(func(ctx context.Context, chat model.Chat) error {
			return a.dir.Block(ctx, chat.ID)
		})
	case "unblock":
		a.withSelected(func(ctx context.Context, chat model.Chat) error {
			return a.dir.Unblock(ctx, chat.ID)
		})
	case "attach":
		a.attach(cmd.Fields())
	case "delete":
		a.deleteSelected()
	case "quit":
		a.app.Stop()
	default:
		a.flashError("Unknown command: " + cmd.Name)
	}
}

// attach stages a file for the composer's next message, ":attach <url>
// [name] [type]". Without arguments the staged file is dropped.
func (a *App) attach(args []string) {
	if len(args) == 0 {
		a.composer.SetAttachment(nil)
		a.setFlash("Attachment cleared")
		return
	}
	att := &model.Attachment{URL: args[0], Name: path.Base(args[0])}
	if len(args) > 1 {
		att.Name = args[1]
	}
	if len(args) > 2 {
		att.Type = args[2]
	}
	a.composer.SetAttachment(att)
	a.setFlash("Attached " + att.Name)
}

// withSelected runs an action against the selected chat in the background.
func (a *App) withSelected(fn func(ctx context.Context, chat model.Chat) error) {
	sel := a.dir.Selected()
	if sel == nil {
		a.flashError("No chat selected")
		return
	}
	chat := *sel
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		defer cancel()
		if err := fn(ctx, chat); err != nil {
			a.flashError("Action failed: " + err.Error())
		}
	}()
}

// deleteSelected confirms, then deletes the highlighted or open chat.
func (a *App) deleteSelected() {
	chat := a.targetChat()
	if chat == nil {
		return
	}
	c := *chat
	name := model.ChatDisplayName(a.dir.User(), &c)
	a.showConfirm("Delete chat with "+name+"?", func() {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
			defer cancel()
			var err error
			if c.IsGroupChat {
				err = a.dir.DeleteGroup(ctx, c.ID)
			} else {
				err = a.dir.Delete(ctx, c.ID)
			}
			if err != nil {
				a.flashError("Delete failed: " + err.Error())
			}
		}()
	})
}

// toggleBlockSelected confirms, then blocks or unblocks the target chat.
func (a *App) toggleBlockSelected() {
	chat := a.targetChat()
	if chat == nil {
		return
	}
	c := *chat
	user := a.dir.User()
	verb := "Block"
	if model.IsBlockedBy(user, &c) {
		verb = "Unblock"
	}
	a.showConfirm(verb+" "+model.ChatDisplayName(user, &c)+"?", func() {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
			defer cancel()
			var err error
			if model.IsBlockedBy(user, &c) {
				err = a.dir.Unblock(ctx, c.ID)
			} else {
				err = a.dir.Block(ctx, c.ID)
			}
			if err != nil {
				a.flashError(verb + " failed: " + err.Error())
			}
		}()
	})
}

// targetChat is the open chat when one is selected, otherwise the list row.
func (a *App) targetChat() *model.Chat {
	if sel := a.dir.Selected(); sel != nil {
		return sel
	}
	return a.chatList.SelectedChat()
}

func (a *App) openChat(chat model.Chat) {
	a.dir.Select(chat)
	a.showChatPage(chat)
}

func (a *App) showChatPage(chat model.Chat) {
	a.msgView.SetChatName(model.ChatDisplayName(a.dir.User(), &chat))
	a.msgView.Update(a.log.Messages())
	a.switchTo("chat")
	a.app.SetFocus(a.composer.InputField)
}

func (a *App) showChats() {
	a.chatList.Update(a.dir.Chats())
	a.switchTo("chats")
	a.app.SetFocus(a.chatList)
}

func (a *App) showSearch() {
	a.switchTo("search")
	a.app.SetFocus(a.searchV.Input())
}

func (a *App) showGroupForm() {
	a.switchTo("group")
	a.app.SetFocus(a.groupForm)
}

// switchTo brings a page to the front and swaps the status bar's key
// hints to that page's bindings.
func (a *App) switchTo(page string) {
	a.pages.SwitchToPage(page)
	a.statusBar.SetHints(a.registry.Hints(page))
}

func (a *App) showConfirm(text string, onYes func()) {
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(idx int, label string) {
			a.pages.RemovePage("confirm")
			if label == "Yes" {
				onYes()
			}
		})
	a.pages.AddPage("confirm", modal, true, true)
	a.app.SetFocus(modal)
}

func (a *App) showCommandLine() {
	a.root.ResizeItem(a.cmdInput, 1, 0)
	a.cmdInput.SetText("")
	a.app.SetFocus(a.cmdInput)
}

func (a *App) hideCommandLine() {
	a.root.ResizeItem(a.cmdInput, 0, 0)
	page, _ := a.pages.GetFrontPage()
	switch page {
	case "chat":
		a.app.SetFocus(a.msgView)
	default:
		a.app.SetFocus(a.chatList)
	}
}

func (a *App) setFlash(msg string) {
	a.flash.Set(msg, flashDuration)
	a.redrawFlash()
}

func (a *App) flashError(msg string) {
	a.flash.SetError(msg, flashDuration)
	a.redrawFlash()
}

func (a *App) redrawFlash() {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetFlash(a.flash.Get())
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	a.startEventLoop()
	a.startRefreshLoop()
	a.chatList.Update(a.dir.Chats())
	return a.app.Run()
}

// startEventLoop redraws on bus events. The subscription buffer absorbs
// bursts; a dropped redraw event is recovered by the next one.
func (a *App) startEventLoop() {
	events, unsub := a.bus.Subscribe("", 256)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-events:
				a.handleEvent(evt)
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.ChatUpdated, bus.ChatRemoved, bus.ChatRefresh:
		a.app.QueueUpdateDraw(func() {
			a.chatList.Update(a.dir.Chats())
			a.statusBar.SetFlash(a.flash.Get())
		})
	case bus.ChatStatusChanged:
		if change, ok := evt.Payload.(status.StatusChange); ok {
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetState(string(change.To))
			})
		}
	case bus.MessageLoaded, bus.MessageAppended, bus.MessageRemoved:
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.log.Messages())
		})
	case bus.MessageLoadFailed:
		if reason, ok := evt.Payload.(string); ok {
			a.flashError("Load failed: " + reason)
		}
	case bus.TransportConnected:
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetConnected(true)
		})
	case bus.TransportDisconnected:
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetConnected(false)
		})
	case bus.TransportOnlineUsers:
		if ids, ok := evt.Payload.([]string); ok {
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetOnline(len(ids))
				a.chatList.Update(a.dir.Chats())
			})
		}
	}
}

// startRefreshLoop refetches the chat list whenever the store asks for it.
func (a *App) startRefreshLoop() {
	go func() {
		for {
			select {
			case <-a.dir.RefreshCh():
				ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
				err := a.dir.Load(ctx)
				cancel()
				if err != nil {
					a.flashError("Refresh failed: " + err.Error())
				}
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
