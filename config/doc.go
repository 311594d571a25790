// Package config loads entitypipe configuration with Viper.
//
// Values come from a config.yml (searched under ./cmd/<service>, ./config
// and the working directory, or given explicitly) and are overridden by
// environment variables, optionally seeded from a .env file:
//
//	var cfg config.Config
//	if err := config.Load("pipectl", &cfg, config.WithConfigFile("config.yml")); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// An environment variable maps to a key by lower-casing it and treating
// underscores as nesting: PIPELINES_STRICT=true sets pipelines.strict.
package config
