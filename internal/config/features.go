package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
)

// FeatureDefinition is one entry of the features registry file.
type FeatureDefinition struct {
	Name       string         `mapstructure:"name"`
	Strategy   string         `mapstructure:"strategy"`
	Candidates []string       `mapstructure:"candidates"`
	Options    map[string]any `mapstructure:"options"`
}

// FeatureRegistry is the immutable set of feature definitions loaded at
// startup.
type FeatureRegistry struct {
	Features []FeatureDefinition `mapstructure:"features"`
}

// LoadFeatureRegistry reads features.yml from FEATURES_FILE or the default
// search paths. A missing file yields an empty registry.
func LoadFeatureRegistry(cfg Config) (FeatureRegistry, error) {
	v := newFeatureViper()

	if cfg.FeaturesFile != "" {
		v.SetConfigFile(cfg.FeaturesFile)
	} else {
		v.SetConfigName("features")
		v.SetConfigType("yml")
		v.AddConfigPath("/var/lib/premium/config")
		v.AddConfigPath("/etc/premium")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return FeatureRegistry{}, nil
		}
		return FeatureRegistry{}, err
	}

	return decodeFeatureRegistry(v)
}

// ParseFeatureRegistry decodes a registry document in the given format
// ("yml", "json", ...).
func ParseFeatureRegistry(r io.Reader, format string) (FeatureRegistry, error) {
	v := newFeatureViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return FeatureRegistry{}, err
	}
	return decodeFeatureRegistry(v)
}

func newFeatureViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PREMIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decodeFeatureRegistry(v *viper.Viper) (FeatureRegistry, error) {
	var reg FeatureRegistry
	if err := v.Unmarshal(&reg); err != nil {
		return FeatureRegistry{}, err
	}
	for i := range reg.Features {
		def := &reg.Features[i]
		def.Name = strings.TrimSpace(def.Name)
		def.Strategy = strings.TrimSpace(def.Strategy)
		for j, candidate := range def.Candidates {
			def.Candidates[j] = strings.TrimSpace(candidate)
		}
	}
	if err := validateFeatureRegistry(reg); err != nil {
		return FeatureRegistry{}, err
	}
	return reg, nil
}

func validateFeatureRegistry(reg FeatureRegistry) error {
	seen := make(map[string]struct{}, len(reg.Features))
	for i, def := range reg.Features {
		if def.Name == "" {
			return fmt.Errorf("features[%d].name cannot be empty", i)
		}
		if _, ok := seen[def.Name]; ok {
			return fmt.Errorf("feature %q is defined twice", def.Name)
		}
		seen[def.Name] = struct{}{}
		if def.Strategy == "" {
			return fmt.Errorf("feature %q: strategy cannot be empty", def.Name)
		}
		if len(def.Candidates) == 0 {
			return fmt.Errorf("feature %q: candidates cannot be empty", def.Name)
		}
		for _, candidate := range def.Candidates {
			if candidate == "" {
				return fmt.Errorf("feature %q: candidate kind cannot be empty", def.Name)
			}
		}
	}
	return nil
}
