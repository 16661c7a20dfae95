package main

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"social_bots/internal/model"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%08d-0000", n)
	}
}

func TestPlan(t *testing.T) {
	types := []model.BotType{model.BotPost, model.BotComment, model.BotLike}
	accounts := plan(20, types, sequentialIDs())

	if len(accounts) != 20 {
		t.Fatalf("len = %d, want 20", len(accounts))
	}

	first := accounts[0]
	want := model.BotAccount{
		Username: "technology_post_00000001",
		IsBot:    true,
		BotType:  model.BotPost,
		BotKey:   "00000002-0000",
		Category: model.CategoryTechnology,
		Headline: "Senior engineer in technology",
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("first account mismatch (-want +got):\n%s", diff)
	}

	// Types advance once every category has a bot of the current type.
	if got := accounts[len(model.Categories)].BotType; got != model.BotComment {
		t.Errorf("account %d type = %s, want COMMENT", len(model.Categories), got)
	}

	keys := make(map[string]bool)
	names := make(map[string]bool)
	for _, a := range accounts {
		if keys[a.BotKey] || names[a.Username] {
			t.Fatalf("duplicate key or username: %+v", a)
		}
		keys[a.BotKey] = true
		names[a.Username] = true
	}
}

func TestParseTypes(t *testing.T) {
	got, err := parseTypes(" post, CATEGORY ,")
	if err != nil {
		t.Fatalf("parseTypes: %v", err)
	}
	if diff := cmp.Diff([]model.BotType{model.BotPost, model.BotCategory}, got); diff != "" {
		t.Errorf("parseTypes() mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"", " , ", "post,share"} {
		if _, err := parseTypes(bad); err == nil {
			t.Errorf("parseTypes(%q) expected error", bad)
		}
	}
}

func TestCheckCount(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{n: 0},
		{n: 10},
		{n: -1, wantErr: true},
	}
	for _, tt := range tests {
		if err := checkCount(tt.n); (err != nil) != tt.wantErr {
			t.Errorf("checkCount(%d) error = %v, wantErr %v", tt.n, err, tt.wantErr)
		}
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{name: "unset uses default", value: "", want: 10},
		{name: "number", value: "25", want: 25},
		{name: "malformed", value: "ten", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BOT_COUNT", tt.value)
			got, err := envInt("BOT_COUNT", 10)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("envInt() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
