package skurag

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	catalogFile      string
	catalogRows      []map[string]any
	descriptionField string

	embedder       Embedder
	openAIKey      string
	openAIModel    string
	localDimension int

	metric string
	topK   int

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	guardrails  string
	agentPrompt string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithCatalogFile loads the catalog from a JSON or YAML file holding a list of mappings.
func WithCatalogFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.catalogFile = path
	})
}

// WithCatalogRecords serves an in-memory catalog. Order is the record identity.
func WithCatalogRecords(rows []map[string]any) Option {
	return optionFunc(func(c *clientConfig) {
		c.catalogRows = rows
	})
}

// WithDescriptionField sets the field that is embedded for search.
// Defaults to "description".
func WithDescriptionField(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.descriptionField = name
	})
}

// WithEmbedder sets a custom text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithOpenAI embeds with an OpenAI embedding model.
// An empty model selects text-embedding-3-small.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIModel = model
	})
}

// WithLocalDimensions sets the vector length of the built-in local encoder.
// Defaults to 384.
func WithLocalDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.localDimension = dim
	})
}

// WithMetric selects the distance: "l2" (default) or "cosine".
func WithMetric(metric string) Option {
	return optionFunc(func(c *clientConfig) {
		c.metric = metric
	})
}

// WithTopK sets how many records Prompt retrieves per turn. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithValkeyCache caches embeddings in Valkey. A zero ttl keeps entries forever.
func WithValkeyCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithAgentPrompt replaces the role section of the system prompt.
func WithAgentPrompt(prompt string) Option {
	return optionFunc(func(c *clientConfig) {
		c.agentPrompt = prompt
	})
}

// WithGuardrails replaces the fixed preamble of the system prompt.
func WithGuardrails(guardrails string) Option {
	return optionFunc(func(c *clientConfig) {
		c.guardrails = guardrails
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
