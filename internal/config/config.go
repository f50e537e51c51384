package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Brownie44l1/digitcmp/internal/model"
	"github.com/Brownie44l1/digitcmp/internal/tensor"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port             string        `env:"PORT" envDefault:"8080"`
	DenseModel       string        `env:"DENSE_MODEL"`
	CNNModel         string        `env:"CNN_MODEL"`
	OnnxRuntimeDylib string        `env:"ONNX_RUNTIME_DYLIB"`
	LoadTimeout      time.Duration `env:"LOAD_TIMEOUT" envDefault:"0s"`

	// PixelScale multiplies every input intensity. The models decide the
	// right value: 1 keeps raw 0..255, 0.00392156862745098 maps to 0..1.
	PixelScale   float32 `env:"PIXEL_SCALE" envDefault:"1"`
	PixelChannel string  `env:"PIXEL_CHANNEL" envDefault:"red"`
	Resampler    string  `env:"RESAMPLER" envDefault:"tf"`

	SuccessToast time.Duration `env:"SUCCESS_TOAST" envDefault:"5s"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
}

// LoadEnvFile loads variables from path into the environment; an empty path
// leaves the environment untouched.
func LoadEnvFile(path string) error {
	if path == "" {
		log.Printf("no env file specified, using os.Environ only")
		return nil
	}
	log.Printf("loading env from file %s", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file '%s': %w", path, err)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Preprocessor().Validate(); err != nil {
		return nil, fmt.Errorf("invalid preprocessing config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Preprocessor() tensor.Preprocessor {
	return tensor.Preprocessor{
		Channel:   tensor.Channel(c.PixelChannel),
		Scale:     c.PixelScale,
		Resampler: tensor.Resampler(c.Resampler),
	}
}

func (c *Config) Source(kind model.Kind) string {
	if kind == model.CNN {
		return c.CNNModel
	}
	return c.DenseModel
}

func (c *Config) S3() model.S3Config {
	return model.S3Config{
		EndpointURL:     c.S3EndpointURL,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		Region:          c.S3Region,
	}
}

// UsesS3 reports whether any model source lives in S3.
func (c *Config) UsesS3() bool {
	for _, kind := range model.Kinds {
		if strings.HasPrefix(c.Source(kind), "s3://") {
			return true
		}
	}
	return false
}
