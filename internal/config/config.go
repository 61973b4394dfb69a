package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ambulon/internal/crawler"
)

// Config drives evaluation runs. A missing file yields defaults.
type Config struct {
	Variant       string  `yaml:"variant"`
	Mode          string  `yaml:"mode"`
	TargetSpeed   float64 `yaml:"target_speed"`
	MaxSpeed      float64 `yaml:"max_speed"`
	MaxJointForce float64 `yaml:"max_joint_force"`
	Episodes      int     `yaml:"episodes"`
	Seed          uint64  `yaml:"seed"`
	TraceDir      string  `yaml:"trace_dir"`

	Store  StoreSpec  `yaml:"store"`
	Bridge BridgeSpec `yaml:"bridge"`
}

type StoreSpec struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

type BridgeSpec struct {
	Addr     string `yaml:"addr"`
	Episodes int    `yaml:"episodes"`
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("ambulon.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("ambulon.yaml: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		Variant:       crawler.VariantFixedTarget.String(),
		Mode:          "gt",
		TargetSpeed:   0,
		MaxSpeed:      crawler.DefaultMaxSpeed,
		MaxJointForce: 100.0,
		Episodes:      1,
		Seed:          1,
		Store:         StoreSpec{Kind: "memory"},
		Bridge:        BridgeSpec{Addr: "127.0.0.1:8484", Episodes: 1},
	}
}

func (c Config) Validate() error {
	if _, err := crawler.ParseVariant(c.Variant); err != nil {
		return err
	}
	switch c.Mode {
	case "gt", "validation", "test", "benchmark":
	default:
		return fmt.Errorf("mode must be one of gt, validation, test, benchmark: %s", c.Mode)
	}
	if c.TargetSpeed < 0 {
		return fmt.Errorf("target_speed must be >= 0")
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed must be > 0")
	}
	if c.TargetSpeed > c.MaxSpeed {
		return fmt.Errorf("target_speed must not exceed max_speed")
	}
	if c.MaxJointForce <= 0 {
		return fmt.Errorf("max_joint_force must be > 0")
	}
	if c.Episodes <= 0 {
		return fmt.Errorf("episodes must be > 0")
	}
	switch c.Store.Kind {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("store kind must be memory or sqlite: %s", c.Store.Kind)
	}
	if c.Store.Kind == "sqlite" && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store path is required for sqlite")
	}
	if c.Bridge.Episodes < 0 {
		return fmt.Errorf("bridge episodes must be >= 0")
	}
	return nil
}
