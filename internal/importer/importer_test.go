package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"dinner-planner/internal/api"
	"dinner-planner/internal/llm"
)

const recipePage = `<html>
<head>
  <title>Best Risotto | Food Blog</title>
  <meta property="og:title" content="Mushroom Risotto">
  <meta property="og:image" content="https://img.example/risotto.jpg">
  <script>var tracking = 1;</script>
</head>
<body>
  <nav><ul><li>Home</li><li>About</li></ul></nav>
  <div class="recipe-ingredients">
    <ul>
      <li>300 g arborio rice</li>
      <li>250 g   mushrooms</li>
      <li>1 onion</li>
    </ul>
  </div>
  <ol class="instructions">
    <li>Fry the onion.</li>
    <li>Add rice and stock slowly.</li>
  </ol>
</body>
</html>`

type mockTextGen struct {
	content string
	err     error
	prompt  string
}

func (m *mockTextGen) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	m.prompt = prompt
	if m.err != nil {
		return llm.ContentResponse{}, m.err
	}
	return llm.ContentResponse{Content: m.content, Usage: llm.TokenUsage{PromptTokens: 50, CompletionTokens: 10}}, nil
}

type mockSubmitter struct {
	got api.RecipeSubmission
}

func (m *mockSubmitter) SubmitRecipe(_ context.Context, sub api.RecipeSubmission) (*api.Recipe, error) {
	m.got = sub
	return &api.Recipe{ID: "new", Title: sub.Title, Status: "pending"}, nil
}

type mockUsage struct {
	calls int
}

func (m *mockUsage) RecordUsage(string, llm.TokenUsage, time.Duration) error {
	m.calls++
	return nil
}

func newPageServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestImportWithoutModel(t *testing.T) {
	server := newPageServer(t, recipePage, http.StatusOK)
	sub := &mockSubmitter{}

	recipe, err := New(sub, nil, nil).Import(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if recipe.Status != "pending" {
		t.Errorf("Expected pending recipe, got %+v", recipe)
	}

	got := sub.got
	if got.Title != "Mushroom Risotto" || got.ImageURL != "https://img.example/risotto.jpg" {
		t.Errorf("Unexpected OpenGraph data %+v", got)
	}
	expected := []string{"300 g arborio rice", "250 g mushrooms", "1 onion"}
	if strings.Join(got.Ingredients, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected ingredients %v, got %v", expected, got.Ingredients)
	}
	if len(got.Instructions) != 2 {
		t.Errorf("Expected 2 instructions, got %v", got.Instructions)
	}
	if got.SourceURL != server.URL {
		t.Errorf("Expected source URL %s, got %s", server.URL, got.SourceURL)
	}
}

func TestImportWithModel(t *testing.T) {
	t.Run("Normalized", func(t *testing.T) {
		server := newPageServer(t, recipePage, http.StatusOK)
		gen := &mockTextGen{content: `{"title":"Creamy Mushroom Risotto","ingredients":["300 g rice"],"instructions":["Cook"],"is_vegetarian":true,"complexity":"Medium"}`}
		usage := &mockUsage{}
		sub := &mockSubmitter{}

		if _, err := New(sub, gen, usage).Import(context.Background(), server.URL); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !strings.Contains(gen.prompt, "300 g arborio rice") || strings.Contains(gen.prompt, "tracking") {
			t.Errorf("Expected cleaned page in prompt, got:\n%s", gen.prompt)
		}
		if sub.got.Title != "Creamy Mushroom Risotto" || !sub.got.IsVegetarian || sub.got.Complexity != "medium" {
			t.Errorf("Unexpected normalized submission %+v", sub.got)
		}
		if sub.got.ImageURL == "" {
			t.Error("Expected scraped image to be kept")
		}
		if usage.calls != 1 {
			t.Errorf("Expected usage recorded once, got %d", usage.calls)
		}
	})

	t.Run("ModelFailureFallsBack", func(t *testing.T) {
		server := newPageServer(t, recipePage, http.StatusOK)
		sub := &mockSubmitter{}

		if _, err := New(sub, &mockTextGen{err: errors.New("quota")}, nil).Import(context.Background(), server.URL); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if sub.got.Title != "Mushroom Risotto" {
			t.Errorf("Expected scraped title, got '%s'", sub.got.Title)
		}
	})
}

func TestImportErrors(t *testing.T) {
	t.Run("BadStatus", func(t *testing.T) {
		server := newPageServer(t, "gone", http.StatusNotFound)
		if _, err := New(&mockSubmitter{}, nil, nil).Import(context.Background(), server.URL); err == nil {
			t.Fatal("Expected an error, got nil")
		}
	})

	t.Run("NoTitle", func(t *testing.T) {
		server := newPageServer(t, "<html><body><p>nothing here</p></body></html>", http.StatusOK)
		if _, err := New(&mockSubmitter{}, nil, nil).Import(context.Background(), server.URL); err == nil {
			t.Fatal("Expected an error for a page without title, got nil")
		}
	})
}

func TestTruncateKeepsRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"crème brûlée", 100, "crème brûlée"},
		{"crème", 3, "cr"},
		{"crème", 4, "crè"},
		{"abc", 3, "abc"},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d): Expected %q, got %q", tt.in, tt.n, tt.want, got)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
		}
	}
}
