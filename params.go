package witness

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gnoswap-labs/witness/internal/candidate"
	"github.com/gnoswap-labs/witness/internal/rewrite"
)

var validate = validator.New()

// Params are the knobs of one optimization run.
type Params struct {
	// MaxIterations caps the number of saturation rounds.
	MaxIterations int `yaml:"iterations" validate:"gt=0"`
	// Lambda is the base ache weight of the candidate sweep.
	Lambda float64 `yaml:"lambda" validate:"gte=0"`
	// Candidates is the number of distinct candidates wanted.
	Candidates int `yaml:"candidates" validate:"gt=0"`
	// MaxAttempts bounds the weights tried while looking for candidates.
	// Zero selects the default.
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0"`
}

func DefaultParams() Params {
	return Params{
		MaxIterations: 8,
		Lambda:        0.6,
		Candidates:    3,
		MaxAttempts:   candidate.DefaultMaxAttempts,
	}
}

func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if math.IsInf(p.Lambda, 0) || math.IsNaN(p.Lambda) {
		return fmt.Errorf("%w: lambda must be finite, got %v", ErrInvalidParams, p.Lambda)
	}
	return nil
}

// Config is the content of a .witness.yaml file.
type Config struct {
	Name   string `yaml:"name"`
	Params `yaml:",inline"`
	// Rules are added after the built-in rules.
	Rules []rewrite.RuleSpec `yaml:"rules,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Name:   "witness",
		Params: DefaultParams(),
	}
}

// LoadConfig reads a configuration file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := config.Params.Validate(); err != nil {
		return config, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// WriteConfig writes c as yaml to path.
func WriteConfig(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// RuleSet compiles the built-in rules followed by the configured ones.
func (c Config) RuleSet() ([]*rewrite.Rule, error) {
	specs := append(rewrite.DefaultSpecs(), c.Rules...)
	rules, err := rewrite.Compile(specs)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", c.Name, err)
	}
	return rules, nil
}
