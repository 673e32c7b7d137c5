package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/vectorserver/auth"
	"github.com/a-h/vectorserver/db"
	"github.com/a-h/vectorserver/embedcache"
	"github.com/a-h/vectorserver/generate"
	embedpost "github.com/a-h/vectorserver/handlers/embed/post"
	healthget "github.com/a-h/vectorserver/handlers/health/get"
	insightspost "github.com/a-h/vectorserver/handlers/insights/post"
	searchpost "github.com/a-h/vectorserver/handlers/search/post"
	"github.com/a-h/vectorserver/provision"
	"github.com/a-h/vectorserver/store"
	"github.com/a-h/vectorserver/store/memory"
	"github.com/a-h/vectorserver/store/pinecone"
	"github.com/a-h/vectorserver/store/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rqlite/gorqlite"
	"github.com/rs/cors"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

type ServeCommand struct {
	ModelName         string        `help:"The model to use for embeddings." env:"MODEL_NAME" default:"nomic-embed-text"`
	OllamaURL         string        `help:"The URL of the Ollama server." env:"OLLAMA_URL" default:"http://127.0.0.1:11434/"`
	ChatModel         string        `help:"The model used to extract key insights. Leave empty to disable /key_insights." env:"CHAT_MODEL" default:""`
	Store             string        `help:"The vector store to use." env:"STORE" enum:"pinecone,rqlite,sqlite,memory" default:"pinecone"`
	Namespace         string        `help:"The vector store namespace to use when authentication is disabled." env:"NAMESPACE" default:""`
	PineconeAPIKey    string        `help:"The Pinecone API key." env:"PINECONE_API_KEY" default:""`
	PineconeIndexName string        `help:"The name of the Pinecone index." env:"PINECONE_INDEX_NAME" default:""`
	PineconeHost      string        `help:"The Pinecone index host. Looked up from the index name if empty." env:"PINECONE_HOST" default:""`
	RqliteURL         string        `help:"The URL of the rqlite server." env:"RQLITE_URL" default:"http://localhost:4001"`
	SQLitePath        string        `help:"The path of the SQLite database file." env:"SQLITE_PATH" default:"vectors.db"`
	RedisURL          string        `help:"The Redis URL used to cache embeddings. Leave empty to disable caching." env:"REDIS_URL" default:""`
	EmbeddingCacheTTL time.Duration `help:"How long cached embeddings are kept." env:"EMBEDDING_CACHE_TTL" default:"24h"`
	ModelsFile        string        `help:"A YAML file of models to provision before serving. Replaces pulling the configured models." env:"MODELS_FILE" default:""`
	ModelsDir         string        `help:"The directory that records which models have been pulled." env:"MODELS_DIR" default:"./models"`
	PullModels        bool          `help:"Pull the embedding and chat models into Ollama before serving." env:"PULL_MODELS" default:"true" negatable:""`
	HFEndpoint        string        `help:"The Hugging Face Hub URL." env:"HF_ENDPOINT" default:"https://huggingface.co"`
	HFToken           string        `help:"The Hugging Face access token." env:"HF_TOKEN" default:""`
	ListenAddr        string        `help:"The address to listen on." env:"LISTEN_ADDR" default:"localhost:8000"`
	TLSCertFile       string        `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile        string        `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	APIKeysFile       string        `help:"The file containing a JSON map of API keys to usernames. Leave empty to disable authentication." env:"API_KEYS_FILE" default:""`
	LogLevel          string        `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	if err = c.provisionModels(ctx, log); err != nil {
		return fmt.Errorf("failed to provision models: %w", err)
	}

	vectors, closeStore, err := c.openStore(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", c.Store, err)
	}
	defer closeStore()

	log.Info("creating LLM clients")
	httpClient := &http.Client{}
	ec, err := ollama.New(
		ollama.WithModel(c.ModelName),
		ollama.WithHTTPClient(httpClient),
		ollama.WithServerURL(c.OllamaURL))
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	var embedder embeddings.Embedder
	embedder, err = embeddings.NewEmbedder(ec)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	if c.RedisURL != "" {
		log.Info("caching embeddings in redis", slog.Duration("ttl", c.EmbeddingCacheTTL))
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis URL: %w", err)
		}
		rc := redis.NewClient(opts)
		defer rc.Close()
		embedder = embedcache.New(log, rc, c.ModelName, c.EmbeddingCacheTTL, embedder)
	}

	var generator generate.Generator
	if c.ChatModel != "" {
		llmc, err := ollama.New(
			ollama.WithModel(c.ChatModel),
			ollama.WithHTTPClient(httpClient),
			ollama.WithServerURL(c.OllamaURL))
		if err != nil {
			return fmt.Errorf("failed to create LLM: %w", err)
		}
		generator = generate.NewLLM(llmc)
	}

	var apiKeyToUserName map[string]string
	if c.APIKeysFile != "" {
		apiKeyToUserName, err = auth.LoadFromFile(c.APIKeysFile)
		if err != nil {
			return fmt.Errorf("failed to load API keys: %w", err)
		}
	} else {
		log.Warn("authentication disabled, any client can read and write vectors")
	}

	log.Info("Listening", slog.String("addr", c.ListenAddr), slog.String("store", c.Store), slog.Bool("keyInsights", generator != nil))
	s := &http.Server{
		Addr:    c.ListenAddr,
		Handler: newHandler(log, embedder, vectors, generator, c.Namespace, apiKeyToUserName),
	}
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.ListenAndServeTLS(c.TLSCertFile, c.TLSKeyFile)
	}
	return s.ListenAndServe()
}

// provisionModels ensures the models listed in the models file are present
// or, without one, that Ollama has the embedding and chat models.
func (c ServeCommand) provisionModels(ctx context.Context, log *slog.Logger) (err error) {
	var targets []provision.Target
	switch {
	case c.ModelsFile != "":
		if targets, err = loadTargets(c.ModelsFile); err != nil {
			return err
		}
	case c.PullModels:
		targets = ollamaTargets(c.ModelsDir, c.ModelName, c.ChatModel)
	}
	if len(targets) == 0 {
		return nil
	}
	p := newProvisioner(log, c.HFEndpoint, c.HFToken, c.OllamaURL)
	return checkResults(log, p.EnsureAll(ctx, targets))
}

// newHandler routes the API. The generator is optional, and authentication
// is only enabled if API keys are provided.
func newHandler(log *slog.Logger, embedder embeddings.Embedder, vectors store.Store, generator generate.Generator, namespace string, apiKeyToUserName map[string]string) http.Handler {
	api := http.NewServeMux()
	api.Handle("POST /embed", embedpost.New(log, embedder, vectors, namespace))
	api.Handle("POST /search", searchpost.New(log, embedder, vectors, namespace))
	if generator != nil {
		api.Handle("POST /key_insights", insightspost.New(log, generator))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", healthget.Handler{})
	if apiKeyToUserName != nil {
		mux.Handle("/", auth.New(apiKeyToUserName, api))
	} else {
		mux.Handle("/", api)
	}
	return cors.AllowAll().Handler(mux)
}

func (c ServeCommand) openStore(ctx context.Context, log *slog.Logger) (vectors store.Store, closer func() error, err error) {
	noop := func() error { return nil }
	switch c.Store {
	case "pinecone":
		log.Info("connecting to pinecone", slog.String("index", c.PineconeIndexName))
		var opts []pinecone.Option
		if c.PineconeHost != "" {
			opts = append(opts, pinecone.WithHost(c.PineconeHost))
		}
		pc, err := pinecone.New(ctx, c.PineconeAPIKey, c.PineconeIndexName, opts...)
		if err != nil {
			return nil, noop, err
		}
		return pc, noop, nil
	case "rqlite":
		databaseURL, err := db.ParseRqliteURL(c.RqliteURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to parse rqlite URL: %w", err)
		}
		log.Info("connecting to database", slog.String("url", databaseURL.String()))
		conn, err := gorqlite.Open(databaseURL.DataSourceName())
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open connection: %w", err)
		}
		closer = func() error {
			conn.Close()
			return nil
		}
		log.Info("migrating database schema")
		version, err := db.Migrate(databaseURL)
		if err != nil {
			closer()
			return nil, noop, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("database schema migrated", slog.Uint64("version", uint64(version)))
		return db.New(conn), closer, nil
	case "sqlite":
		log.Info("opening sqlite database", slog.String("path", c.SQLitePath))
		s, err := sqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "memory":
		log.Warn("using the in-memory store, vectors are lost on exit")
		return memory.New(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown store %q", c.Store)
}
