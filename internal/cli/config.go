package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/charmsmith/internal/paths"
	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend = "backend"
	cfgKeyDataDir = "data_dir"
)

// configFile is the structure written to config.yaml.
type configFile struct {
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir,omitempty"`
	types.Config `yaml:",inline"`
}

// settings is everything an invocation reads from config.yaml.
type settings struct {
	engine  types.Config
	backend string
	dataDir string
}

// loadConfig reads config.yaml from configDir with Viper, layered over the
// engine defaults. A missing config.yaml is not an error.
func loadConfig(configDir string) (settings, error) {
	def := types.DefaultConfig()

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault("stage.width", def.Stage.Width)
	v.SetDefault("stage.height", def.Stage.Height)
	v.SetDefault("margin", def.Margin)
	v.SetDefault("min_spacing", def.MinSpacing)
	v.SetDefault("snap_threshold", def.SnapThreshold)
	v.SetDefault("max_charm_size", def.MaxCharmSize)
	v.SetDefault("max_history_size", def.MaxHistorySize)
	v.SetDefault("search_radius", def.SearchRadius)
	v.SetDefault("search_step", def.SearchStep)
	v.SetDefault("auto_persist", def.AutoPersist)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var engine types.Config
	useYAMLTags := func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }
	if err := v.Unmarshal(&engine, useYAMLTags); err != nil {
		return settings{}, fmt.Errorf("decode config: %w", err)
	}
	return settings{
		engine:  engine,
		backend: v.GetString(cfgKeyBackend),
		dataDir: v.GetString(cfgKeyDataDir),
	}, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns nil.
func writeConfigIfMissing(configDir, dataDir string) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
		Config:  types.DefaultConfig(),
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# charmsmith configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// loadDesignFile reads a base design from a YAML file.
func loadDesignFile(path string) (types.BaseDesign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.BaseDesign{}, fmt.Errorf("read design: %w", err)
	}
	var d types.BaseDesign
	if err := yaml.Unmarshal(data, &d); err != nil {
		return types.BaseDesign{}, fmt.Errorf("parse design %s: %w", path, err)
	}
	if d.Scale == 0 {
		d.Scale = 1
	}
	if d.Bounds.Width <= 0 || d.Bounds.Height <= 0 {
		return types.BaseDesign{}, fmt.Errorf("design %s: %w", path, types.ErrBaseDesignInvalid)
	}
	return d, nil
}
