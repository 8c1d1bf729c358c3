package configloader

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const defaultConfigFile = "config.yaml"

type Validator interface {
	Validate() error
}

// Options tunes where Load looks for its sources. The zero value uses the defaults.
type Options struct {
	// ConfigFile overrides both the default file and the <PREFIX>CONFIG variable.
	ConfigFile string
	// EnvFile is the dotenv file, ".env" when empty.
	EnvFile string
	// Defaults are loaded first and overridden by every other source.
	Defaults map[string]any
}

// Load reads the configuration for the named application with default options.
func Load[T Validator](appName string) (T, error) {
	return LoadWithOptions[T](appName, Options{})
}

// LoadWithOptions layers defaults, the YAML file, the dotenv file and the
// process environment, in increasing priority, then validates the result.
// Environment keys use the upper-cased application name as prefix and "_" as
// the path separator, e.g. STOREFRONT_CART_STORE_DRIVER -> cart.store.driver.
func LoadWithOptions[T Validator](appName string, opts Options) (T, error) {
	var cfg T
	k := koanf.New(".")

	envPrefix := fmt.Sprintf("%s_", strings.ToUpper(appName))

	if len(opts.Defaults) > 0 {
		if err := k.Load(confmap.Provider(opts.Defaults, "."), nil); err != nil {
			return cfg, fmt.Errorf("error loading config defaults: %w", err)
		}
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = os.Getenv(envPrefix + "CONFIG")
	}
	explicitFile := configFile != ""
	if !explicitFile {
		configFile = defaultConfigFile
	}

	// 1. YAML file; a missing default file is fine, a missing explicit one is not
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		switch {
		case os.IsNotExist(err) && explicitFile:
			return cfg, fmt.Errorf("config file %q not found: %w", configFile, err)
		case !os.IsNotExist(err):
			log.Printf("WARN: error loading YAML config file '%s': %v", configFile, err)
		}
	}

	envTransformer := func(key string) string {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, strings.ToLower(envPrefix))
		return strings.ReplaceAll(key, "_", ".")
	}

	// 2. .env file
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if envFileMap, err := godotenv.Read(envFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if !strings.HasPrefix(strings.ToUpper(key), envPrefix) {
				continue
			}
			envMap[envTransformer(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 3. system environment, the highest priority
	if err := k.Load(env.Provider(envPrefix, ".", envTransformer), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
