package directory

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/model"
	"github.com/beingharisali/martchat/internal/status"
)

// ChatAPI is the slice of the REST client the store needs.
type ChatAPI interface {
	ListChats(ctx context.Context) ([]model.Chat, error)
	AccessChat(ctx context.Context, userID string) (*model.Chat, error)
	CreateGroup(ctx context.Context, name string, userIDs []string) (*model.Chat, error)
	RenameGroup(ctx context.Context, chatID, name string) (*model.Chat, error)
	AddToGroup(ctx context.Context, chatID, userID string) (*model.Chat, error)
	RemoveFromGroup(ctx context.Context, chatID, userID string) (*model.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	DeleteGroup(ctx context.Context, chatID string) error
	BlockChat(ctx context.Context, chatID string) error
	UnblockChat(ctx context.Context, chatID string) error
	MarkChatRead(ctx context.Context, chatID string) error
}

// Joiner registers interest in a chat's live events on the transport.
type Joiner interface {
	JoinChat(chatID string)
}

// Store is the session's single source of truth for which chats exist and
// which one is open. The selected chat is always a fully resolved Chat,
// never a bare id. State is session-scoped: nothing here survives a
// restart, the list is rebuilt from the server on each mount.
type Store struct {
	api     ChatAPI
	joiner  Joiner
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
	user    model.User

	mu       sync.RWMutex
	chats    []model.Chat
	selected *model.Chat
	online   map[string]struct{}

	refreshCh chan struct{}
}

// NewStore creates a directory store for the signed-in user.
func NewStore(api ChatAPI, joiner Joiner, machine *status.Machine, b *bus.Bus, user model.User, logger *zap.Logger) *Store {
	return &Store{
		api:       api,
		joiner:    joiner,
		machine:   machine,
		bus:       b,
		logger:    logger,
		user:      user,
		online:    make(map[string]struct{}),
		refreshCh: make(chan struct{}, 1),
	}
}

// User returns the identity the store was built for.
func (s *Store) User() model.User {
	return s.user
}

// Machine returns the open-ness state machine for the selected chat.
func (s *Store) Machine() *status.Machine {
	return s.machine
}

// RefreshCh returns the channel that signals a list refetch is wanted.
func (s *Store) RefreshCh() <-chan struct{} {
	return s.refreshCh
}

// SignalRefresh requests a list refetch. Non-blocking; coalesces with any
// pending signal.
func (s *Store) SignalRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
	s.bus.Emit(bus.ChatRefresh, nil)
}

// Chats returns a snapshot of the chat list in server order.
func (s *Store) Chats() []model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Chat, len(s.chats))
	copy(out, s.chats)
	return out
}

// Selected returns a copy of the selected chat, or nil.
func (s *Store) Selected() *model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	c := *s.selected
	return &c
}

// Load replaces the chat list wholesale from the server. On failure the
// previous list is kept; before the first successful load an empty list is
// the correct fallback, so there is nothing to preserve.
func (s *Store) Load(ctx context.Context) error {
	chats, err := s.api.ListChats(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.chats = chats
	// Refresh the selected chat from the new list so membership and name
	// changes made elsewhere are picked up.
	if s.selected != nil {
		if cur := findChat(s.chats, s.selected.ID); cur != nil {
			c := *cur
			s.selected = &c
		}
	}
	s.mu.Unlock()
	s.bus.Emit(bus.ChatUpdated, nil)
	return nil
}

// Select makes chat the open conversation: transitions the open-ness
// machine to JOINING, re-registers the transport on the new chat and
// announces the selection so the message log reloads.
func (s *Store) Select(chat model.Chat) {
	if s.machine.Current() != status.Closed {
		_ = s.machine.Transition(status.Closed, "")
	}
	if err := s.machine.Transition(status.Joining, chat.ID); err != nil {
		s.logger.Error("select transition failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	c := chat
	s.selected = &c
	s.mu.Unlock()

	s.joiner.JoinChat(chat.ID)
	s.bus.Emit(bus.ChatSelected, chat)
	s.SignalRefresh()
}

// ClearSelection closes the open chat without touching the server.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	if s.machine.Current() != status.Closed {
		_ = s.machine.Transition(status.Closed, "")
	}
}

// MarkOpen settles a JOINING chat into OPEN once its message fetch has
// completed. A late settle for a chat that is no longer joining is ignored.
func (s *Store) MarkOpen(chatID string) {
	if s.machine.Current() != status.Joining || s.machine.ChatID() != chatID {
		return
	}
	_ = s.machine.Transition(status.Open, chatID)
}

// CreateDirect opens the direct chat with the given user, creating it on
// the server if absent. Idempotent: the server returns the existing chat
// for a repeated counterpart. The chat is merged into the list and selected.
func (s *Store) CreateDirect(ctx context.Context, userID string) (*model.Chat, error) {
	chat, err := s.api.AccessChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.mergeChat(*chat)
	s.Select(*chat)
	return chat, nil
}

// CreateGroup creates a named group chat with the given members. The
// creator is added implicitly as admin by the server, so memberIDs must
// name at least one other user.
func (s *Store) CreateGroup(ctx context.Context, name string, memberIDs []string) (*model.Chat, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &model.ValidationError{Reason: "group name is required"}
	}
	if len(memberIDs) < 1 {
		return nil, &model.ValidationError{Reason: "a group needs at least one member besides you"}
	}
	chat, err := s.api.CreateGroup(ctx, name, memberIDs)
	if err != nil {
		return nil, err
	}
	s.mergeChat(*chat)
	return chat, nil
}

// Rename changes a group chat's name and patches the local entry.
func (s *Store) Rename(ctx context.Context, chatID, name string) error {
	if strings.TrimSpace(name) == "" {
		return &model.ValidationError{Reason: "chat name is required"}
	}
	chat, err := s.api.RenameGroup(ctx, chatID, name)
	if err != nil {
		return err
	}
	s.replaceChat(*chat)
	return nil
}

// AddMember adds a user to a group chat.
func (s *Store) AddMember(ctx context.Context, chatID, userID string) error {
	chat, err := s.api.AddToGroup(ctx, chatID, userID)
	if err != nil {
		return err
	}
	s.replaceChat(*chat)
	return nil
}

// RemoveMember removes a user from a group chat.
func (s *Store) RemoveMember(ctx context.Context, chatID, userID string) error {
	chat, err := s.api.RemoveFromGroup(ctx, chatID, userID)
	if err != nil {
		return err
	}
	s.replaceChat(*chat)
	return nil
}

// Delete removes a direct chat server-side, then locally. Deleting a chat
// that is already gone surfaces the server's not-found error unchanged.
func (s *Store) Delete(ctx context.Context, chatID string) error {
	if err := s.api.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	s.removeLocal(chatID)
	return nil
}

// DeleteGroup removes a group chat server-side, then locally.
func (s *Store) DeleteGroup(ctx context.Context, chatID string) error {
	if err := s.api.DeleteGroup(ctx, chatID); err != nil {
		return err
	}
	s.removeLocal(chatID)
	return nil
}

// Block blocks the chat from the current user's side and patches the local
// blockedBy set without a refetch.
func (s *Store) Block(ctx context.Context, chatID string) error {
	if err := s.api.BlockChat(ctx, chatID); err != nil {
		return err
	}
	s.patchBlocked(chatID, true)
	return nil
}

// Unblock lifts the current user's block on the chat.
func (s *Store) Unblock(ctx context.Context, chatID string) error {
	if err := s.api.UnblockChat(ctx, chatID); err != nil {
		return err
	}
	s.patchBlocked(chatID, false)
	return nil
}

// MarkRead marks the chat read for the current user. Fire-and-forget:
// read-state is not safety-critical, failures are logged, never surfaced.
func (s *Store) MarkRead(ctx context.Context, chatID string) {
	if err := s.api.MarkChatRead(ctx, chatID); err != nil {
		s.logger.Warn("mark chat read failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}

// TouchLatest updates a chat's latest-message preview locally after a live
// delivery, so the list reflects it without a refetch.
func (s *Store) TouchLatest(msg model.Message) {
	chatID := msg.ChatID()
	if chatID == "" {
		return
	}
	s.mu.Lock()
	if c := findChat(s.chats, chatID); c != nil {
		m := msg
		c.LatestMessage = &m
	}
	if s.selected != nil && s.selected.ID == chatID {
		m := msg
		s.selected.LatestMessage = &m
	}
	s.mu.Unlock()
}

// SetOnline replaces the set of online user ids.
func (s *Store) SetOnline(ids []string) {
	online := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		online[id] = struct{}{}
	}
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
}

// IsOnline reports whether the given user has a live connection.
func (s *Store) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// OnlineCount returns the number of users with live connections.
func (s *Store) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.online)
}

// mergeChat prepends the chat if absent, otherwise replaces the entry.
func (s *Store) mergeChat(chat model.Chat) {
	s.mu.Lock()
	if existing := findChat(s.chats, chat.ID); existing != nil {
		*existing = chat
	} else {
		s.chats = append([]model.Chat{chat}, s.chats...)
	}
	s.mu.Unlock()
	s.bus.Emit(bus.ChatUpdated, chat.ID)
}

// replaceChat swaps in a server-returned chat, updating the selection too.
func (s *Store) replaceChat(chat model.Chat) {
	s.mu.Lock()
	if existing := findChat(s.chats, chat.ID); existing != nil {
		*existing = chat
	}
	if s.selected != nil && s.selected.ID == chat.ID {
		c := chat
		s.selected = &c
	}
	s.mu.Unlock()
	s.bus.Emit(bus.ChatUpdated, chat.ID)
}

// removeLocal drops a chat from the list and clears the selection if the
// deleted chat was open.
func (s *Store) removeLocal(chatID string) {
	s.mu.Lock()
	kept := s.chats[:0]
	for _, c := range s.chats {
		if c.ID != chatID {
			kept = append(kept, c)
		}
	}
	s.chats = kept
	wasSelected := s.selected != nil && s.selected.ID == chatID
	if wasSelected {
		s.selected = nil
	}
	s.mu.Unlock()

	if wasSelected && s.machine.Current() != status.Closed {
		_ = s.machine.Transition(status.Closed, "")
	}
	s.bus.Emit(bus.ChatRemoved, chatID)
	s.SignalRefresh()
}

// patchBlocked toggles the current user's membership in the chat's
// blockedBy set, in both the list and the selection.
func (s *Store) patchBlocked(chatID string, blocked bool) {
	s.mu.Lock()
	if c := findChat(s.chats, chatID); c != nil {
		c.BlockedBy = toggleID(c.BlockedBy, s.user.ID, blocked)
	}
	if s.selected != nil && s.selected.ID == chatID {
		s.selected.BlockedBy = toggleID(s.selected.BlockedBy, s.user.ID, blocked)
	}
	s.mu.Unlock()
	s.bus.Emit(bus.ChatUpdated, chatID)
}

func findChat(chats []model.Chat, id string) *model.Chat {
	for i := range chats {
		if chats[i].ID == id {
			return &chats[i]
		}
	}
	return nil
}

// toggleID never edits ids in place: Chats and Selected hand out shallow
// copies whose BlockedBy slices still alias the store's backing arrays.
func toggleID(ids []string, id string, present bool) []string {
	out := make([]string, 0, len(ids)+1)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if present {
		out = append(out, id)
	}
	return out
}
