package api

import (
	"context"
	"net/http"

	"github.com/beingharisali/martchat/internal/model"
)

// SendMessage persists a message and returns the server's authoritative
// copy. att may be nil for plain text messages.
func (c *Client) SendMessage(ctx context.Context, chatID, content string, att *model.Attachment) (*model.Message, error) {
	body := map[string]string{
		"content": content,
		"chatId":  chatID,
	}
	if att != nil {
		body["fileUrl"] = att.URL
		body["fileName"] = att.Name
		body["fileType"] = att.Type
	}
	var msg model.Message
	if err := c.do(ctx, http.MethodPost, "/message", nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns the full message history of a chat.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.do(ctx, http.MethodGet, "/message/"+chatID, nil, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteMessage removes a message from the server.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/message/"+messageID, nil, nil, nil)
}

// ClearNotifications clears the current user's message notifications.
func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/message/clear-notifications", nil, nil, nil)
}
