package model

import "time"

// Role is a marketplace account role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVendor   Role = "vendor"
	RoleCustomer Role = "customer"
)

// User is the external identity referenced by chats and messages.
// The chat client reads users; it never creates or mutates them.
type User struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// FullName returns "First Last", falling back to the email when both
// name fields are empty.
func (u User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Email
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// Chat is a direct conversation (exactly two participants) or a named
// group conversation owned by its admin.
type Chat struct {
	ID            string    `json:"_id"`
	ChatName      string    `json:"chatName"`
	IsGroupChat   bool      `json:"isGroupChat"`
	Users         []User    `json:"users"`
	GroupAdmin    *User     `json:"groupAdmin,omitempty"`
	LatestMessage *Message  `json:"latestMessage,omitempty"`
	BlockedBy     []string  `json:"blockedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Message is one chat event. Content may be empty only when a file
// attachment is present. Immutable once created except for IsRead and
// deletion.
type Message struct {
	ID        string    `json:"_id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	Chat      *Chat     `json:"chat,omitempty"`
	IsRead    bool      `json:"isRead"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	FileType  string    `json:"fileType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatID returns the id of the chat the message belongs to, or empty if
// the server did not populate the chat reference.
func (m *Message) ChatID() string {
	if m.Chat == nil {
		return ""
	}
	return m.Chat.ID
}

// Attachment describes an uploaded file referenced by an outgoing message.
type Attachment struct {
	URL  string
	Name string
	Type string
}
