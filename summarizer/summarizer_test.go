package summarizer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinhngo-x/news-agg/config"
	"github.com/thinhngo-x/news-agg/models"
	"github.com/thinhngo-x/news-agg/summarizer"
)

// fakeOpenAI is a stand-in completion endpoint capturing every request
type fakeOpenAI struct {
	server   *httptest.Server
	requests []openai.ChatCompletionRequest
	reply    string
	status   int
}

func newFakeOpenAI(t *testing.T, reply string) *fakeOpenAI {
	t.Helper()

	fake := &fakeOpenAI{reply: reply, status: http.StatusOK}
	fake.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding completion request: %v", err)
		}
		fake.requests = append(fake.requests, req)

		w.Header().Set("Content-Type", "application/json")
		if fake.status != http.StatusOK {
			w.WriteHeader(fake.status)
			fmt.Fprint(w, `{"error": {"message": "upstream exploded", "type": "server_error"}}`)
			return
		}

		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: fake.reply}},
			},
		})
	}))
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeOpenAI) lastRequest(t *testing.T) openai.ChatCompletionRequest {
	t.Helper()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newStoreWithKey(t *testing.T) *config.AIStore {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	return config.NewAIStore(filepath.Join(t.TempDir(), "key.json"), models.ModelGPT4oMini)
}

func newSummarizer(store *config.AIStore, baseURL string) *summarizer.Summarizer {
	return summarizer.New(store, summarizer.Config{
		MaxSummaryLength: 400,
		Temperature:      0.3,
		Timeout:          5 * time.Second,
		BaseURL:          baseURL,
	})
}

func TestSummarizeWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	store := config.NewAIStore(filepath.Join(t.TempDir(), "key.json"), models.ModelGPT4oMini)

	s := newSummarizer(store, "")
	assert.False(t, s.Available())

	_, err := s.Summarize(context.Background(), "Title", "Some text")
	assert.ErrorIs(t, err, summarizer.ErrNoAPIKey)
}

func TestSummarize(t *testing.T) {
	fake := newFakeOpenAI(t, "  A tight summary.  ")
	store := newStoreWithKey(t)

	s := newSummarizer(store, fake.server.URL+"/v1")
	assert.True(t, s.Available())

	summary, err := s.Summarize(context.Background(), "Budget passed", "The council voted on the budget.")
	require.NoError(t, err)
	assert.Equal(t, "A tight summary.", summary)

	req := fake.lastRequest(t)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 200, req.MaxTokens)
	assert.InDelta(t, 0.3, float64(req.Temperature), 0.001)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "professional news summarizer")

	prompt := req.Messages[1].Content
	assert.Contains(t, prompt, "100 words or less")
	assert.Contains(t, prompt, "Title: Budget passed")
	assert.Contains(t, prompt, "The council voted on the budget.")
}

func TestSummarizeUsesSelectedModel(t *testing.T) {
	fake := newFakeOpenAI(t, "A summary.")
	store := newStoreWithKey(t)
	require.NoError(t, store.SetModel(models.ModelGPT4o))

	s := newSummarizer(store, fake.server.URL+"/v1")

	_, err := s.Summarize(context.Background(), "Title", "Text")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", fake.lastRequest(t).Model)
}

func TestSummarizeClipsLongArticles(t *testing.T) {
	fake := newFakeOpenAI(t, "A summary.")
	store := newStoreWithKey(t)

	s := newSummarizer(store, fake.server.URL+"/v1")

	_, err := s.Summarize(context.Background(), "Title", strings.Repeat("x", 10000))
	require.NoError(t, err)

	prompt := fake.lastRequest(t).Messages[1].Content
	assert.Equal(t, 3000, strings.Count(prompt, "x"))
}

func TestSummarizeProviderError(t *testing.T) {
	fake := newFakeOpenAI(t, "")
	fake.status = http.StatusInternalServerError
	store := newStoreWithKey(t)

	s := newSummarizer(store, fake.server.URL+"/v1")

	_, err := s.Summarize(context.Background(), "Title", "Text")
	require.Error(t, err)

	var summarizeErr *summarizer.SummarizeError
	require.ErrorAs(t, err, &summarizeErr)
	assert.Equal(t, models.ModelGPT4oMini, summarizeErr.Model)
}

func TestSummarizeEmptyCompletion(t *testing.T) {
	fake := newFakeOpenAI(t, "   ")
	store := newStoreWithKey(t)

	s := newSummarizer(store, fake.server.URL+"/v1")

	_, err := s.Summarize(context.Background(), "Title", "Text")
	require.Error(t, err)

	var summarizeErr *summarizer.SummarizeError
	assert.ErrorAs(t, err, &summarizeErr)
}

func TestDailyDigest(t *testing.T) {
	fake := newFakeOpenAI(t, "Today in the news...")
	store := newStoreWithKey(t)

	s := newSummarizer(store, fake.server.URL+"/v1")

	summaryText := "An AI summary"
	articles := []models.Article{
		{Title: "Budget passed", Description: "The council voted."},
		{Title: "Storm warning", Summary: &summaryText},
		{Title: "Match report"},
	}

	digest, err := s.DailyDigest(context.Background(), articles, 12)
	require.NoError(t, err)
	assert.Equal(t, "Today in the news...", digest)

	req := fake.lastRequest(t)
	assert.Equal(t, 800, req.MaxTokens)
	assert.InDelta(t, 0.3, float64(req.Temperature), 0.001)
	assert.Contains(t, req.Messages[0].Content, "professional news editor")

	prompt := req.Messages[1].Content
	assert.Contains(t, prompt, "3 articles from the last 12 hours")
	assert.Contains(t, prompt, "Title: Budget passed")
	assert.Contains(t, prompt, "Description: The council voted.")
	assert.Contains(t, prompt, "Summary: An AI summary")
	assert.Contains(t, prompt, "Key developments and breaking news")
}

func TestDailyDigestCapsPromptArticles(t *testing.T) {
	fake := newFakeOpenAI(t, "Today in the news...")
	store := newStoreWithKey(t)

	s := newSummarizer(store, fake.server.URL+"/v1")

	articles := make([]models.Article, 60)
	for i := range articles {
		articles[i] = models.Article{Title: fmt.Sprintf("Story %d", i)}
	}

	_, err := s.DailyDigest(context.Background(), articles, 24)
	require.NoError(t, err)

	prompt := fake.lastRequest(t).Messages[1].Content
	// The count covers every article, the prompt only carries the first fifty
	assert.Contains(t, prompt, "60 articles from the last 24 hours")
	assert.Equal(t, 50, strings.Count(prompt, "Title: Story"))
}
