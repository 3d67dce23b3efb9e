package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Neo4j         Neo4jConfig
	Milvus        MilvusConfig
	SQLite        SQLiteConfig
	Redis         RedisConfig
	Embedding     EmbeddingConfig
	Scoring       ScoringConfig
	Canonicalizer CanonicalizerConfig
	Resolver      ResolverConfig
	Ingest        IngestConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        int
	WriteTimeout       int
	BodyLimit          int
	Environment        string
	RateLimitPerMinute int
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type MilvusConfig struct {
	Address        string
	APIKey         string
	CollectionName string
	VectorDim      int
	Enabled        bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host       string
	Port       int
	Password   string
	DB         int
	TTLSeconds int
}

type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimension  int
	TimeoutSec int
}

type ScoringConfig struct {
	// ConnectionThreshold is the minimum strength at which a scored
	// theory/phenomenon edge is materialized in the graph.
	ConnectionThreshold float64
	// SemanticMode selects the semantic factor strategy: "embedding" or
	// "lexical". Exactly one runs per scoring call.
	SemanticMode string
}

type CanonicalizerConfig struct {
	FuzzyThreshold     float64
	EmbeddingThreshold float64
	AmbiguousMargin    float64
	ContainmentMaxLen  int
	DictionaryPath     string
}

type ResolverConfig struct {
	// RequireConfirm refuses live merges unless the request carries an
	// explicit confirmation. Dry-run reports are always allowed.
	RequireConfirm bool
}

type IngestConfig struct {
	// Workers bounds the per-paper fan-out of batch ingestion.
	Workers int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/theorygraph")

	viper.SetEnvPrefix("THEORYGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.rateLimitPerMinute", 120)

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("milvus.address", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "canonical_names")
	viper.SetDefault("milvus.vectorDim", 1536)
	viper.SetDefault("milvus.enabled", false)

	viper.SetDefault("sqlite.path", "./data/theorygraph.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSeconds", 604800)

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimension", 1536)
	viper.SetDefault("embedding.timeoutSec", 30)

	viper.SetDefault("scoring.connectionThreshold", 0.3)
	viper.SetDefault("scoring.semanticMode", "lexical")

	viper.SetDefault("canonicalizer.fuzzyThreshold", 0.85)
	viper.SetDefault("canonicalizer.embeddingThreshold", 0.85)
	viper.SetDefault("canonicalizer.ambiguousMargin", 0.10)
	viper.SetDefault("canonicalizer.containmentMaxLen", 55)
	viper.SetDefault("canonicalizer.dictionaryPath", "")

	viper.SetDefault("resolver.requireConfirm", true)

	viper.SetDefault("ingest.workers", 3)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
