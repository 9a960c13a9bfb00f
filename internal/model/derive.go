package model

// UnknownUserName is the fallback display name for a direct chat whose
// counterpart cannot be resolved.
const UnknownUserName = "Unknown user"

// Counterpart returns the other participant of a direct chat, or nil for
// group chats and malformed participant lists.
func Counterpart(current User, c *Chat) *User {
	if c == nil || c.IsGroupChat {
		return nil
	}
	for i := range c.Users {
		if c.Users[i].ID != current.ID {
			return &c.Users[i]
		}
	}
	return nil
}

// ChatDisplayName returns the group name for group chats and the
// counterpart's full name for direct chats.
func ChatDisplayName(current User, c *Chat) string {
	if c == nil {
		return UnknownUserName
	}
	if c.IsGroupChat {
		return c.ChatName
	}
	if other := Counterpart(current, c); other != nil {
		return other.FullName()
	}
	return UnknownUserName
}

// IsGroupAdmin reports whether current administers the group chat c.
func IsGroupAdmin(current User, c *Chat) bool {
	return c != nil && c.IsGroupChat && c.GroupAdmin != nil && c.GroupAdmin.ID == current.ID
}

// IsBlockedBy reports whether current has blocked the chat from their side.
func IsBlockedBy(current User, c *Chat) bool {
	if c == nil {
		return false
	}
	for _, id := range c.BlockedBy {
		if id == current.ID {
			return true
		}
	}
	return false
}
