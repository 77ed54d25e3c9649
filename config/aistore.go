package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"github.com/thinhngo-x/news-agg/models"
)

// AISettings is the process wide summarization configuration: the API key
// and the selected model. Values are immutable once published; every update
// builds a new value and swaps the whole thing.
type AISettings struct {
	APIKey string
	Model  models.AIModel
}

// HasKey reports whether a non-empty API key is configured
func (s *AISettings) HasKey() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// AIStore owns the current AISettings behind an atomic pointer. It is
// loaded once at process start and replaced atomically on save, so the
// summarizer always reads a consistent key/model pair.
type AIStore struct {
	current atomic.Pointer[AISettings]
	keyFile string
}

// keyCache is the on-disk shape of the key file
type keyCache struct {
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`
	Model        string `json:"model,omitempty"`
}

// NewAIStore loads the initial settings. The OPENAI_API_KEY environment
// variable wins over the key file; the model falls back to defaultModel
// when the file carries none.
func NewAIStore(keyFile string, defaultModel models.AIModel) *AIStore {
	store := &AIStore{keyFile: keyFile}

	if !defaultModel.Valid() {
		defaultModel = models.ModelGPT4oMini
	}
	settings := AISettings{Model: defaultModel}

	if cache, err := readKeyCache(keyFile); err != nil {
		log.WithFields(log.Fields{
			"file":  keyFile,
			"error": err,
		}).Warn("Could not read key file")
	} else if cache != nil {
		settings.APIKey = cache.OpenAIAPIKey
		if m := models.AIModel(cache.Model); m.Valid() {
			settings.Model = m
		}
	}

	if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		settings.APIKey = envKey
	}

	store.current.Store(&settings)
	return store
}

// Current returns the settings snapshot in effect right now
func (store *AIStore) Current() *AISettings {
	return store.current.Load()
}

// SetKey stores a new API key, persists it to the key file and publishes
// the new settings
func (store *AIStore) SetKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key is empty")
	}

	next := *store.Current()
	next.APIKey = key
	if err := store.persist(&next); err != nil {
		return err
	}
	store.current.Store(&next)
	return nil
}

// ClearKey removes the API key from memory and from the key file
func (store *AIStore) ClearKey() error {
	next := *store.Current()
	next.APIKey = ""
	if err := store.persist(&next); err != nil {
		return err
	}
	store.current.Store(&next)
	return nil
}

// SetModel selects a model from the supported set and persists the choice
func (store *AIStore) SetModel(model models.AIModel) error {
	if !model.Valid() {
		return fmt.Errorf("unsupported model: %s", model)
	}

	next := *store.Current()
	next.Model = model
	if err := store.persist(&next); err != nil {
		return err
	}
	store.current.Store(&next)
	return nil
}

func (store *AIStore) persist(settings *AISettings) error {
	cache := keyCache{
		OpenAIAPIKey: settings.APIKey,
		Model:        string(settings.Model),
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding key file: %w", err)
	}

	// The file holds a secret, keep it owner-only
	if err := os.WriteFile(store.keyFile, data, 0o600); err != nil {
		return fmt.Errorf("error writing key file: %w", err)
	}
	return nil
}

func readKeyCache(path string) (*keyCache, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cache keyCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("error parsing key file: %w", err)
	}
	return &cache, nil
}
