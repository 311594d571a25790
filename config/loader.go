package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/entitypipe/logger"
)

// FileSystem abstracts the file operations of the loader for tests.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem implements FileSystem on the local disk.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver finds the config and env files of a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns the explicit paths from opts, searching the standard
// locations for whichever was not given.
func (r *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.first(configSearchPaths(serviceName))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = r.first(envSearchPaths(serviceName))
	}
	return resolved
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configSearchPaths(serviceName string) []string {
	paths := make([]string, 0, 8)
	for _, dir := range []string{"./cmd/" + serviceName, "../cmd/" + serviceName, "./config", "../config", "."} {
		paths = append(paths, dir+"/config.yml", dir+"/config.yaml")
	}
	return paths
}

func envSearchPaths(serviceName string) []string {
	var paths []string
	for _, name := range []string{".env." + serviceName, ".env"} {
		for _, dir := range []string{"./cmd/" + serviceName, "./config", ".", ".."} {
			paths = append(paths, dir+"/"+name)
		}
	}
	return paths
}

// LoaderConfig holds the loader's dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	EnvRoots   []string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path. Load fails if it does
// not exist.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvRoots limits environment overrides to variables whose first
// segment is one of roots.
func WithEnvRoots(roots ...string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvRoots = roots }
}

// Load reads config.yml and .env for serviceName into cfg. Environment
// variables override file values: PIPELINES_DIRS sets pipelines.dirs,
// OBSERVABILITY_TRACING_SAMPLE_RATE sets observability.tracing.sample_rate.
//
// When cfg has an EnvRoots method its roots are used unless WithEnvRoots
// was given.
func Load(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = OSFileSystem{}
	}
	if lc.EnvRoots == nil {
		if r, ok := cfg.(interface{ EnvRoots() []string }); ok {
			lc.EnvRoots = r.EnvRoots()
		}
	}
	if lc.ConfigFile != "" && !lc.FileSystem.Exists(lc.ConfigFile) {
		return fmt.Errorf("config file %s not found", lc.ConfigFile)
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)
	return loadFromResolvedFiles(serviceName, cfg, files, lc)
}

func loadFromResolvedFiles(serviceName string, cfg interface{}, files ResolvedFiles, lc LoaderConfig) error {
	v := viper.New()
	log := logger.WithComponent("config")

	if files.ConfigFile != "" {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", files.ConfigFile, err)
		}
		log.Debug("config file loaded", logger.Fields("file", files.ConfigFile))
	}

	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			log.Warn("failed to load env file", logger.ErrorFields(files.EnvFile, err))
		}
	}
	bindEnv(v, os.Environ(), lc.EnvRoots)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshaling config for service %s: %w", serviceName, err)
	}
	return nil
}

// bindEnv sets every key variant of each KEY=value pair on v.
func bindEnv(v *viper.Viper, environ []string, roots []string) {
	allowed := make(map[string]bool, len(roots))
	for _, r := range roots {
		allowed[r] = true
	}
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || key == "" {
			continue
		}
		lower := strings.ToLower(key)
		if len(allowed) > 0 {
			root, _, _ := strings.Cut(lower, "_")
			if !allowed[root] && !allowed[lower] {
				continue
			}
		}
		for _, variant := range envKeyVariants(lower) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants returns the nested key spellings an env key may stand for.
//
//	observability_tracing_sample_rate -> [observability_tracing_sample_rate,
//	    observability.tracing.sample.rate, observability.tracing_sample_rate,
//	    observability.tracing.sample_rate, ...]
func envKeyVariants(key string) []string {
	parts := strings.Split(key, "_")
	if len(parts) == 1 {
		return []string{key}
	}
	variants := []string{key, strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}
	seen := make(map[string]bool, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
