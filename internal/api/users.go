package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/beingharisali/martchat/internal/model"
)

// SearchUsers finds chat counterparts by name or email.
func (c *Client) SearchUsers(ctx context.Context, searchQuery string) ([]model.User, error) {
	var users []model.User
	q := url.Values{"searchQuery": {searchQuery}}
	if err := c.do(ctx, http.MethodGet, "/users/search", q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Profile resolves the identity behind the configured bearer token. This is
// the auth collaborator's surface; the chat core only reads the result.
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
