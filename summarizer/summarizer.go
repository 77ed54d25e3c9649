package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openai "github.com/sashabaranov/go-openai"
	"github.com/thinhngo-x/news-agg/config"
	"github.com/thinhngo-x/news-agg/models"
)

var (
	summariesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagg_summaries_total",
		Help: "The total number of completion requests that produced a summary",
	})

	summaryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagg_summary_errors_total",
		Help: "The total number of completion requests that failed",
	})
)

// ErrNoAPIKey is returned by every summarization call while no API key is
// configured. Callers treat it as "feature off", not as a provider failure.
var ErrNoAPIKey = errors.New("no OpenAI API key configured")

// SummarizeError wraps a failed completion request
type SummarizeError struct {
	Model models.AIModel
	Err   error
}

func (e *SummarizeError) Error() string {
	return fmt.Sprintf("summarize with %s: %v", e.Model, e.Err)
}

func (e *SummarizeError) Unwrap() error {
	return e.Err
}

const (
	summarySystemPrompt = "You are a professional news summarizer. Create concise, accurate summaries of news articles."
	digestSystemPrompt  = "You are a professional news editor creating daily news digests. Your task is to synthesize multiple news articles into a single, flowing narrative that reads like a comprehensive news briefing. Write in a clear, engaging style that connects related stories and provides context."

	// Article text beyond this is cut before prompting, the lead paragraphs
	// carry the story.
	maxPromptChars = 3000

	maxDigestArticles = 50
	digestMaxTokens   = 800
	digestTemperature = 0.3
)

type Config struct {
	MaxSummaryLength int
	Temperature      float64
	Timeout          time.Duration
	BaseURL          string // overrides the OpenAI endpoint, empty means the real one
}

// Summarizer generates article summaries and daily digests through the
// OpenAI chat completion API. The key and model are read from the store on
// every call, so key changes apply without a restart.
type Summarizer struct {
	store       *config.AIStore
	maxLength   int
	temperature float32
	timeout     time.Duration
	baseURL     string
}

func New(store *config.AIStore, cfg Config) *Summarizer {
	maxLength := cfg.MaxSummaryLength
	if maxLength <= 0 {
		maxLength = 500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Summarizer{
		store:       store,
		maxLength:   maxLength,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		baseURL:     cfg.BaseURL,
	}
}

// Available reports whether an API key is currently configured
func (s *Summarizer) Available() bool {
	return s.store.Current().HasKey()
}

// Summarize produces a short summary of a single article
func (s *Summarizer) Summarize(ctx context.Context, title string, text string) (string, error) {
	prompt := fmt.Sprintf(`Please summarize the following news article in %d words or less.
Focus on the key facts, main points, and important details.

Title: %s

Article Content:
%s

Summary:`, s.maxLength/4, title, clip(text, maxPromptChars))

	return s.complete(ctx, summarySystemPrompt, prompt, s.maxLength/2, s.temperature)
}

// DailyDigest writes one briefing over the given articles. Only the first
// fifty go into the prompt to keep the request inside token limits, the
// article count in the prompt still covers all of them.
func (s *Summarizer) DailyDigest(ctx context.Context, articles []models.Article, hours int) (string, error) {
	blocks := make([]string, 0, len(articles))
	for i, article := range articles {
		if i == maxDigestArticles {
			break
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Title: %s\n", article.Title)
		if article.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", article.Description)
		}
		if article.Summary != nil && *article.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", *article.Summary)
		}
		blocks = append(blocks, b.String())
	}

	prompt := fmt.Sprintf(`Please create a comprehensive daily news summary based on the following %d articles from the last %d hours:

%s

Please provide:
1. A brief overview of the main themes and topics
2. Key developments and breaking news
3. Important trends or patterns
4. A conclusion with the most significant stories

Format the response as a well-structured summary suitable for a daily briefing.`,
		len(articles), hours, strings.Join(blocks, "\n\n"))

	return s.complete(ctx, digestSystemPrompt, prompt, digestMaxTokens, digestTemperature)
}

func (s *Summarizer) complete(ctx context.Context, system string, prompt string, maxTokens int, temperature float32) (string, error) {
	settings := s.store.Current()
	if !settings.HasKey() {
		return "", ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client(settings.APIKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: string(settings.Model),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		summaryErrors.Inc()
		log.Errorf("completion request failed: %s", err)
		return "", &SummarizeError{Model: settings.Model, Err: err}
	}
	if len(resp.Choices) == 0 {
		summaryErrors.Inc()
		return "", &SummarizeError{Model: settings.Model, Err: errors.New("no choices in response")}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		summaryErrors.Inc()
		return "", &SummarizeError{Model: settings.Model, Err: errors.New("empty completion")}
	}

	summariesTotal.Inc()
	return text, nil
}

func (s *Summarizer) client(key string) *openai.Client {
	clientConfig := openai.DefaultConfig(key)
	if s.baseURL != "" {
		clientConfig.BaseURL = s.baseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
