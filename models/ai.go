package models

// AIModel identifies one of the supported summarization models. The set is
// closed: model choice in the API is validated against this enumeration.
type AIModel string

const (
	ModelGPT4oMini  AIModel = "gpt-4o-mini"
	ModelGPT4o      AIModel = "gpt-4o"
	ModelGPT4Turbo  AIModel = "gpt-4-turbo"
	ModelGPT4       AIModel = "gpt-4"
	ModelGPT35Turbo AIModel = "gpt-3.5-turbo"
)

// CostTier is a coarse price bracket for a model
type CostTier string

const (
	CostFree   CostTier = "free"
	CostLow    CostTier = "low"
	CostMedium CostTier = "medium"
	CostHigh   CostTier = "high"
)

// AIModelInfo carries the cost/quality metadata for one model
type AIModelInfo struct {
	ModelId     AIModel  `json:"modelId"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	CostTier    CostTier `json:"costTier"`
	MaxTokens   int      `json:"maxTokens"`
}

// Recommended reports whether the model is a sensible default pick
func (i AIModelInfo) Recommended() bool {
	return i.CostTier == CostFree || i.CostTier == CostLow
}

var modelCatalog = map[AIModel]AIModelInfo{
	ModelGPT4oMini: {
		ModelId:     ModelGPT4oMini,
		DisplayName: "GPT-4o Mini (Efficient & Widely Available)",
		Description: "Fast and cost-effective model suitable for most tasks",
		CostTier:    CostLow,
		MaxTokens:   16384,
	},
	ModelGPT4o: {
		ModelId:     ModelGPT4o,
		DisplayName: "GPT-4o (Latest & High Quality)",
		Description: "Latest model with best performance",
		CostTier:    CostHigh,
		MaxTokens:   128000,
	},
	ModelGPT4Turbo: {
		ModelId:     ModelGPT4Turbo,
		DisplayName: "GPT-4 Turbo (Balanced Performance)",
		Description: "Balanced performance and cost",
		CostTier:    CostMedium,
		MaxTokens:   128000,
	},
	ModelGPT4: {
		ModelId:     ModelGPT4,
		DisplayName: "GPT-4 (Premium Quality)",
		Description: "High quality but more expensive",
		CostTier:    CostHigh,
		MaxTokens:   8192,
	},
	ModelGPT35Turbo: {
		ModelId:     ModelGPT35Turbo,
		DisplayName: "GPT-3.5 Turbo (Legacy)",
		Description: "Legacy model, may not be available",
		CostTier:    CostLow,
		MaxTokens:   4096,
	},
}

// modelOrder keeps listings stable, cheapest and most available first
var modelOrder = []AIModel{
	ModelGPT4oMini,
	ModelGPT35Turbo,
	ModelGPT4o,
	ModelGPT4Turbo,
	ModelGPT4,
}

// Info returns the metadata for the model. The second return value is
// false for identifiers outside the supported set.
func (m AIModel) Info() (AIModelInfo, bool) {
	info, ok := modelCatalog[m]
	return info, ok
}

// Valid reports whether m names a supported model
func (m AIModel) Valid() bool {
	_, ok := modelCatalog[m]
	return ok
}

// AllModels returns the full model catalog in a stable order
func AllModels() []AIModelInfo {
	models := make([]AIModelInfo, 0, len(modelOrder))
	for _, id := range modelOrder {
		models = append(models, modelCatalog[id])
	}
	return models
}
