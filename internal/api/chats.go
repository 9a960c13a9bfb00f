package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/beingharisali/martchat/internal/model"
)

// AccessChat returns the direct chat with the given user, creating it if
// absent. The server guarantees idempotence: re-requesting the same
// counterpart returns the existing chat.
func (c *Client) AccessChat(ctx context.Context, userID string) (*model.Chat, error) {
	var chat model.Chat
	body := map[string]string{"userId": userID}
	if err := c.do(ctx, http.MethodPost, "/chat", nil, body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChats returns all chats visible to the current user, in server order.
func (c *Client) ListChats(ctx context.Context) ([]model.Chat, error) {
	var chats []model.Chat
	if err := c.do(ctx, http.MethodGet, "/chat", nil, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CreateGroup creates a new group chat. The server expects the member ids
// as a JSON-encoded string array; the creator is added implicitly as admin.
func (c *Client) CreateGroup(ctx context.Context, name string, userIDs []string) (*model.Chat, error) {
	encoded, err := json.Marshal(userIDs)
	if err != nil {
		return nil, fmt.Errorf("encode member ids: %w", err)
	}
	var chat model.Chat
	body := map[string]string{"name": name, "users": string(encoded)}
	if err := c.do(ctx, http.MethodPost, "/chat/group", nil, body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// RenameGroup changes a group chat's name.
func (c *Client) RenameGroup(ctx context.Context, chatID, name string) (*model.Chat, error) {
	var chat model.Chat
	body := map[string]string{"chatId": chatID, "chatName": name}
	if err := c.do(ctx, http.MethodPut, "/chat/rename", nil, body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// AddToGroup adds a user to a group chat.
func (c *Client) AddToGroup(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	var chat model.Chat
	body := map[string]string{"chatId": chatID, "userId": userID}
	if err := c.do(ctx, http.MethodPut, "/chat/groupadd", nil, body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// RemoveFromGroup removes a user from a group chat.
func (c *Client) RemoveFromGroup(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	var chat model.Chat
	body := map[string]string{"chatId": chatID, "userId": userID}
	if err := c.do(ctx, http.MethodPut, "/chat/groupremove", nil, body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// DeleteGroup hard-deletes a group chat on the server.
func (c *Client) DeleteGroup(ctx context.Context, chatID string) error {
	body := map[string]string{"chatId": chatID}
	return c.do(ctx, http.MethodDelete, "/chat/groupdelete", nil, body, nil)
}

// DeleteChat hard-deletes a direct chat on the server.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/chat/"+chatID, nil, nil, nil)
}

// MarkChatRead marks all messages in the chat as read for the current user.
func (c *Client) MarkChatRead(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPut, "/chat/"+chatID+"/read", nil, nil, nil)
}

// BlockChat blocks the chat from the current user's side.
func (c *Client) BlockChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/chat/"+chatID+"/block", nil, nil, nil)
}

// UnblockChat lifts the current user's block on the chat.
func (c *Client) UnblockChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/chat/"+chatID+"/unblock", nil, nil, nil)
}
