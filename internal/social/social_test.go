package social

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"social_bots/internal/model"
	"social_bots/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

type apiRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (a *apiRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	data, _ := io.ReadAll(r.Body)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}

	a.mu.Lock()
	a.requests = append(a.requests, rec)
	status := a.status
	a.mu.Unlock()

	if status == 0 {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("rejected\n"))
}

func (a *apiRecorder) getRequests() []recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make([]recordedRequest, len(a.requests))
	copy(cp, a.requests)
	return cp
}

func TestAPIClient(t *testing.T) {
	rec := &apiRecorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	c := NewAPIClient(srv.Client(), srv.URL)
	ctx := context.Background()

	if err := c.CreatePost(ctx, "key-1", "Hello world!"); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if err := c.CreateComment(ctx, "key-2", "post 7", "Nice one"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if err := c.CreateLike(ctx, "key-3", "post-8"); err != nil {
		t.Fatalf("CreateLike: %v", err)
	}

	want := []recordedRequest{
		{
			Method: http.MethodPost,
			Path:   "/api/posts",
			Auth:   "Bearer key-1",
			Body:   map[string]any{"content": "Hello world!", "isPublic": true},
		},
		{
			Method: http.MethodPost,
			Path:   "/api/posts/post 7/comments",
			Auth:   "Bearer key-2",
			Body:   map[string]any{"content": "Nice one"},
		},
		{
			Method: http.MethodPost,
			Path:   "/api/posts/post-8/likes",
			Auth:   "Bearer key-3",
		},
	}
	if diff := cmp.Diff(want, rec.getRequests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIClientStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "created", status: http.StatusCreated},
		{name: "ok", status: http.StatusOK},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(&apiRecorder{status: tt.status})
			t.Cleanup(srv.Close)

			err := NewAPIClient(srv.Client(), srv.URL).CreateLike(context.Background(), "k", "p")
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrUnexpectedStatus) {
				t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
			}
		})
	}
}

func TestAPIClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(&apiRecorder{})
	url := srv.URL
	srv.Close()

	if err := NewAPIClient(http.DefaultClient, url).CreatePost(context.Background(), "k", "x"); err == nil {
		t.Fatal("expected error from closed server")
	}
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreActions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	author := &model.BotAccount{Username: "poster", IsBot: true, BotType: model.BotPost, BotKey: "key-a", Category: model.CategoryFood}
	fan := &model.BotAccount{Username: "fan", IsBot: true, BotType: model.BotComment, BotKey: "key-b", Category: model.CategoryFood}
	for _, u := range []*model.BotAccount{author, fan} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	actions := NewStoreActions(store)
	if err := actions.CreatePost(ctx, "key-a", "Sourdough day"); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	post, err := store.SampleItem(ctx, model.CategoryFood, fan.ID)
	if err != nil || post == nil {
		t.Fatalf("SampleItem: %v, %v", post, err)
	}
	if post.AuthorID != author.ID || post.Content != "Sourdough day" || !post.IsPublic {
		t.Errorf("unexpected post: %+v", post)
	}

	if err := actions.CreateComment(ctx, "key-b", post.ID, "Looks great"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if err := actions.CreateLike(ctx, "key-b", post.ID); err != nil {
		t.Fatalf("CreateLike: %v", err)
	}

	comments, err := store.ListComments(ctx, post.ID)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(comments) != 1 || comments[0].AuthorID != fan.ID || comments[0].Content != "Looks great" {
		t.Errorf("unexpected comments: %+v", comments)
	}
	likes, err := store.CountLikes(ctx, post.ID)
	if err != nil {
		t.Fatalf("CountLikes: %v", err)
	}
	if likes != 1 {
		t.Errorf("likes = %d, want 1", likes)
	}
}

func TestStoreActionsUnknownKey(t *testing.T) {
	actions := NewStoreActions(newTestStore(t))
	err := actions.CreatePost(context.Background(), "nope", "x")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
