// Package config loads audd settings from defaults, a config file, .env
// files, AUDD_* environment variables and command-line flags, in increasing
// order of precedence, and validates the result against an embedded CUE
// schema.
package config

import (
	"cmp"
	_ "embed"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/audd/internal/apply"
	"github.com/roach88/audd/internal/build"
	"github.com/roach88/audd/internal/diff"
	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/resolve"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "AUDD"

// Config is the full set of pipeline settings.
type Config struct {
	Build   BuildConfig   `mapstructure:"build" json:"build"`
	Compare CompareConfig `mapstructure:"compare" json:"compare"`
	Resolve ResolveConfig `mapstructure:"resolve" json:"resolve"`
	Apply   ApplyConfig   `mapstructure:"apply" json:"apply"`
	Store   StoreConfig   `mapstructure:"store" json:"store"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
}

type BuildConfig struct {
	SampleSize  int      `mapstructure:"sample_size" json:"sample_size"`
	MaxKeyWidth int      `mapstructure:"max_key_width" json:"max_key_width"`
	PrimaryKey  []string `mapstructure:"primary_key" json:"primary_key"`
}

type CompareConfig struct {
	Strategy     string   `mapstructure:"strategy" json:"strategy"`
	Threshold    float64  `mapstructure:"threshold" json:"threshold"`
	IgnoreFields []string `mapstructure:"ignore_fields" json:"ignore_fields"`
}

type ResolveConfig struct {
	Strategy             string  `mapstructure:"strategy" json:"strategy"`
	PreferSource         string  `mapstructure:"prefer_source" json:"prefer_source"`
	AutoResolveThreshold float64 `mapstructure:"auto_resolve_threshold" json:"auto_resolve_threshold"`
}

type ApplyConfig struct {
	DryRun bool `mapstructure:"dry_run" json:"dry_run"`
	Backup bool `mapstructure:"backup" json:"backup"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// defaults is keyed by the dotted config key. Every key the loader knows is
// listed here, which is what lets AutomaticEnv and Unmarshal see env-only
// values.
var defaults = map[string]any{
	"build.sample_size":              build.DefaultSampleSize,
	"build.max_key_width":            build.DefaultMaxKeyWidth,
	"build.primary_key":              []string{},
	"compare.strategy":               string(diff.Hybrid),
	"compare.threshold":              diff.DefaultThreshold,
	"compare.ignore_fields":          []string{},
	"resolve.strategy":               string(resolve.Balanced),
	"resolve.prefer_source":          string(resolve.PreferMerge),
	"resolve.auto_resolve_threshold": resolve.DefaultAutoResolveThreshold,
	"apply.dry_run":                  false,
	"apply.backup":                   true,
	"store.path":                     "audd.db",
	"log.level":                      "info",
	"log.format":                     "text",
}

// Keys lists the dotted config keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EnvName returns the environment variable for a dotted key,
// e.g. compare.threshold → AUDD_COMPARE_THRESHOLD.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Default returns the configuration with no file, env or flags applied.
func Default() *Config {
	return &Config{
		Build: BuildConfig{SampleSize: build.DefaultSampleSize, MaxKeyWidth: build.DefaultMaxKeyWidth},
		Compare: CompareConfig{
			Strategy:  string(diff.Hybrid),
			Threshold: diff.DefaultThreshold,
		},
		Resolve: ResolveConfig{
			Strategy:             string(resolve.Balanced),
			PreferSource:         string(resolve.PreferMerge),
			AutoResolveThreshold: resolve.DefaultAutoResolveThreshold,
		},
		Apply: ApplyConfig{Backup: true},
		Store: StoreConfig{Path: "audd.db"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Loader assembles a Config. A Loader is single-use per Load call and is not
// safe for concurrent use.
type Loader struct {
	v      *viper.Viper
	envDir string
	flags  map[string]*pflag.Flag
}

// NewLoader returns a loader reading .env files from the working directory.
func NewLoader() *Loader {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, envDir: ".", flags: make(map[string]*pflag.Flag)}
}

// WithEnvDir sets the directory .env and .env.local are read from.
func (l *Loader) WithEnvDir(dir string) *Loader {
	l.envDir = dir
	return l
}

// BindFlag makes a changed flag override key. Unchanged flags leave lower
// layers in effect.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if _, ok := defaults[key]; !ok {
		return errs.Internal("config", "unknown config key %q", key)
	}
	if flag == nil {
		return errs.Internal("config", "nil flag for key %q", key)
	}
	l.flags[key] = flag
	return nil
}

// Load reads path (yaml, json, toml or cue; empty for none), layers .env
// files, environment and flags over it, and validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		if err := l.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := l.mergeDotEnv(); err != nil {
		return nil, err
	}
	for key, flag := range l.flags {
		if err := l.v.BindPFlag(key, flag); err != nil {
			return nil, errs.Wrap(errs.KindInternal, "config", err, "bind flag %q", flag.Name)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "config", err, "decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("config loaded", "file", path, "store", cfg.Store.Path)
	return &cfg, nil
}

func (l *Loader) readFile(path string) error {
	if filepath.Ext(path) != ".cue" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr != nil {
				return errs.Wrap(errs.KindIO, "config", statErr, "read %s", path)
			}
			return errs.Wrap(errs.KindParse, "config", err, "parse %s", path)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.KindIO, "config", err, "read %s", path)
	}
	val := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return errs.New(errs.KindParse, "config", "parse %s: %s", path, cueerrors.Details(err, nil))
	}
	var m map[string]any
	if err := val.Decode(&m); err != nil {
		return errs.Wrap(errs.KindParse, "config", err, "decode %s", path)
	}
	if err := l.v.MergeConfigMap(m); err != nil {
		return errs.Wrap(errs.KindParse, "config", err, "merge %s", path)
	}
	return nil
}

// mergeDotEnv folds AUDD_* entries of .env and .env.local into the config
// layer, so they beat the config file but lose to the real environment.
// .env.local wins over .env.
func (l *Loader) mergeDotEnv() error {
	env := make(map[string]string)
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(l.envDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := godotenv.Read(path)
		if err != nil {
			return errs.Wrap(errs.KindParse, "config", err, "read %s", path)
		}
		for k, v := range m {
			env[k] = v
		}
	}

	layer := make(map[string]any)
	for _, key := range Keys() {
		val, ok := env[EnvName(key)]
		if !ok {
			continue
		}
		section, name, _ := strings.Cut(key, ".")
		sub, _ := layer[section].(map[string]any)
		if sub == nil {
			sub = make(map[string]any)
			layer[section] = sub
		}
		sub[name] = val
	}
	if len(layer) == 0 {
		return nil
	}
	if err := l.v.MergeConfigMap(layer); err != nil {
		return errs.Wrap(errs.KindInternal, "config", err, "merge .env")
	}
	return nil
}

// Validate checks c against the embedded #Config schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return errs.Wrap(errs.KindInternal, "config", err, "compile schema")
	}
	val := schema.Unify(ctx.Encode(c.encodable()))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return errs.New(errs.KindInvalidInput, "config", "%s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// encodable returns a copy whose unset lists are empty. CUE encodes a nil
// slice as an incomplete value, which concrete validation rejects.
func (c *Config) encodable() Config {
	out := *c
	if out.Build.PrimaryKey == nil {
		out.Build.PrimaryKey = []string{}
	}
	if out.Compare.IgnoreFields == nil {
		out.Compare.IgnoreFields = []string{}
	}
	return out
}

// BuildOptions converts the build section.
func (c *Config) BuildOptions() build.Options {
	return build.Options{
		SampleSize:  c.Build.SampleSize,
		MaxKeyWidth: c.Build.MaxKeyWidth,
		PrimaryKey:  slices.Clone(c.Build.PrimaryKey),
	}
}

// CompareOptions converts the compare section.
func (c *Config) CompareOptions() diff.Options {
	return diff.Options{
		Strategy:     diff.Strategy(c.Compare.Strategy),
		Threshold:    c.Compare.Threshold,
		IgnoreFields: slices.Clone(c.Compare.IgnoreFields),
	}
}

// ResolveOptions converts the resolve section.
func (c *Config) ResolveOptions() resolve.Options {
	return resolve.Options{
		Strategy:             resolve.Strategy(c.Resolve.Strategy),
		PreferSource:         resolve.Source(c.Resolve.PreferSource),
		AutoResolveThreshold: c.Resolve.AutoResolveThreshold,
	}
}

// ApplyOptions converts the apply section.
func (c *Config) ApplyOptions() apply.Options {
	return apply.Options{DryRun: c.Apply.DryRun, Backup: c.Apply.Backup}
}

// NewLogger returns a logger writing to w at the configured level and format.
// It does not install itself as the default.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.level()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (l LogConfig) level() slog.Level {
	switch cmp.Or(l.Level, "info") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
