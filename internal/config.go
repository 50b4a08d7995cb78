package internal

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zhengshuai-xiao/git-fastcdc/internal/compression"
)

const (
	StoreConfigName   = "config.yaml"
	StoreFormatLatest = 1
)

// ChunkingConfig holds the chunker parameters a store applies when the
// command line does not override them.
type ChunkingConfig struct {
	MinSize       uint32 `yaml:"min_size"`
	AvgSize       uint32 `yaml:"avg_size"`
	MaxSize       uint32 `yaml:"max_size"`
	Normalization uint8  `yaml:"normalization"`
}

// StoreConfig is persisted as <root>/config.yaml.
type StoreConfig struct {
	UUID        string         `yaml:"uuid"`
	Format      int            `yaml:"format"`
	CreatedAt   time.Time      `yaml:"created_at"`
	MinVersion  string         `yaml:"min_version,omitempty"`
	Chunking    ChunkingConfig `yaml:"chunking"`
	Compression string         `yaml:"compression"`
	Verify      bool           `yaml:"verify"`
}

func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		UUID:      uuid.NewString(),
		Format:    StoreFormatLatest,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Chunking: ChunkingConfig{
			MinSize:       16 << 10,
			AvgSize:       64 << 10,
			MaxSize:       256 << 10,
			Normalization: 2,
		},
		Compression: "none",
		Verify:      true,
	}
}

// Validate checks the fields that chunking itself does not validate.
func (c *StoreConfig) Validate() error {
	if _, err := uuid.Parse(c.UUID); err != nil {
		return fmt.Errorf("invalid store uuid %q: %w", c.UUID, err)
	}
	if c.Format < 1 || c.Format > StoreFormatLatest {
		return fmt.Errorf("unsupported store format %d", c.Format)
	}
	if _, ok := compression.CompressionMethods[c.Compression]; !ok {
		return fmt.Errorf("compression %q: %w", c.Compression, compression.ErrInvalidCompressionType)
	}
	return CheckMinVersion(c.MinVersion)
}

func (c *StoreConfig) CompressionType() compression.CompressionType {
	return compression.CompressionMethods[c.Compression]
}

func (c *StoreConfig) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// LoadStoreConfig reads path on top of the defaults, so keys missing from
// older files keep their default values. The result is validated.
func LoadStoreConfig(path string) (*StoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultStoreConfig()
	c.UUID = ""
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
