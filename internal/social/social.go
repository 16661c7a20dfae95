// Package social performs the network-visible side effects of a bot: posts,
// comments and likes.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"social_bots/internal/model"
)

// ErrUnexpectedStatus is returned when the API answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Actions is what a bot can do on the network. Every call authenticates
// with the bot's key.
type Actions interface {
	CreatePost(ctx context.Context, botKey, text string) error
	CreateComment(ctx context.Context, botKey, postID, text string) error
	CreateLike(ctx context.Context, botKey, postID string) error
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIClient implements Actions against the application's REST API.
type APIClient struct {
	client  HTTPClient
	baseURL string
}

// NewAPIClient creates a client for the API rooted at baseURL.
func NewAPIClient(client HTTPClient, baseURL string) *APIClient {
	return &APIClient{client: client, baseURL: baseURL}
}

type postRequest struct {
	Content  string `json:"content"`
	IsPublic bool   `json:"isPublic"`
}

type commentRequest struct {
	Content string `json:"content"`
}

// CreatePost implements Actions.
func (c *APIClient) CreatePost(ctx context.Context, botKey, text string) error {
	return c.do(ctx, botKey, "/api/posts", postRequest{Content: text, IsPublic: true})
}

// CreateComment implements Actions.
func (c *APIClient) CreateComment(ctx context.Context, botKey, postID, text string) error {
	return c.do(ctx, botKey, "/api/posts/"+url.PathEscape(postID)+"/comments", commentRequest{Content: text})
}

// CreateLike implements Actions.
func (c *APIClient) CreateLike(ctx context.Context, botKey, postID string) error {
	return c.do(ctx, botKey, "/api/posts/"+url.PathEscape(postID)+"/likes", nil)
}

func (c *APIClient) do(ctx context.Context, botKey, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+botKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: %w %d: %s", path, ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Store is the persistence StoreActions writes to.
type Store interface {
	GetUserByKey(ctx context.Context, botKey string) (*model.BotAccount, error)
	InsertPost(ctx context.Context, p *model.Post) error
	InsertComment(ctx context.Context, c *model.Comment) error
	InsertLike(ctx context.Context, l *model.Like) error
}

// StoreActions implements Actions by writing straight to the data store.
// It is used when no API URL is configured.
type StoreActions struct {
	store Store
}

// NewStoreActions creates StoreActions on top of store.
func NewStoreActions(store Store) *StoreActions {
	return &StoreActions{store: store}
}

// CreatePost implements Actions.
func (s *StoreActions) CreatePost(ctx context.Context, botKey, text string) error {
	author, err := s.store.GetUserByKey(ctx, botKey)
	if err != nil {
		return fmt.Errorf("resolve author: %w", err)
	}
	return s.store.InsertPost(ctx, &model.Post{
		AuthorID: author.ID,
		Category: author.Category,
		Content:  text,
		IsPublic: true,
	})
}

// CreateComment implements Actions.
func (s *StoreActions) CreateComment(ctx context.Context, botKey, postID, text string) error {
	author, err := s.store.GetUserByKey(ctx, botKey)
	if err != nil {
		return fmt.Errorf("resolve author: %w", err)
	}
	return s.store.InsertComment(ctx, &model.Comment{
		PostID:   postID,
		AuthorID: author.ID,
		Content:  text,
	})
}

// CreateLike implements Actions.
func (s *StoreActions) CreateLike(ctx context.Context, botKey, postID string) error {
	author, err := s.store.GetUserByKey(ctx, botKey)
	if err != nil {
		return fmt.Errorf("resolve author: %w", err)
	}
	return s.store.InsertLike(ctx, &model.Like{PostID: postID, AuthorID: author.ID})
}
