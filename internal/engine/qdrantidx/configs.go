package qdrantidx

import "time"

// Config holds connection and collection settings for the Qdrant engine.
type Config struct {
	// Host of the Qdrant server, e.g. "localhost".
	Host string `yaml:"host" env:"QDRANT_HOST"`

	// Port is the gRPC port. Default: 6334.
	Port int `yaml:"port" env:"QDRANT_PORT"`

	// APIKey is the optional authentication token for secured deployments.
	APIKey string `yaml:"api_key" env:"QDRANT_API_KEY"`

	// CollectionPrefix namespaces this service's collections. A shard
	// named "s1" lives in the collection "<prefix>s1". Default: "cbir_".
	CollectionPrefix string `yaml:"collection_prefix" env:"QDRANT_COLLECTION_PREFIX"`

	// Timeout bounds each engine call. Default: 10s.
	Timeout time.Duration `yaml:"timeout" env:"QDRANT_TIMEOUT"`

	// MinWidth and MinHeight are the smallest image dimensions accepted
	// for indexing. Default: 8x8.
	MinWidth  int `yaml:"min_width" env:"ENGINE_MIN_WIDTH"`
	MinHeight int `yaml:"min_height" env:"ENGINE_MIN_HEIGHT"`
}

// DefaultConfig provides sensible defaults for a local Qdrant.
func DefaultConfig() Config {
	return Config{
		Host:             "localhost",
		Port:             6334,
		CollectionPrefix: "cbir_",
		Timeout:          10 * time.Second,
		MinWidth:         8,
		MinHeight:        8,
	}
}
