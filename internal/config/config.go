// Package config loads the engine's tunables once at
// startup. Defaults are set first, then environment variables are bound
// over them (env vars are the source of truth, same as cmd/engine/main.go's
// startup sequence), then an optional YAML file supplies the versioned
// framework/reset/generic pattern tables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/templateguard/simengine/pkg/models"
)

// PatternTable holds the versioned deny-lists, loaded separately from a
// YAML file rather than compiled in as inline literals so operators can
// update it without a redeploy. The version is stamped into every sketch
// produced while this table is active so stale sketches can be recognized
// later.
type PatternTable struct {
	Version                 int
	FrameworkClassPrefixes  []string
	ResetSelectors          []string
	GenericStructuralPatterns []string
}

// Config is the engine's full tunable surface.
type Config struct {
	SketchDimension int // N, corpus-wide immutable post-deployment
	Bands           int // b
	RowsPerBand     int // r; must satisfy Bands*RowsPerBand == SketchDimension

	CSSShingleK  int
	HTMLShingleK int

	CandidateThreshold float64 // τ_c
	RuleOverlapFloor   float64
	RuleMinCommonDecls int

	PageBudgetK int

	DriftResolvedSimilarity    float64
	DriftResolvedMinimumDrift  float64
	DriftInsufficientMax       float64

	StructuralArityCap int // children captured per structural signature

	Patterns PatternTable

	RateLimitPerMinute int // requests/minute allowed per client IP
	RateLimitBurst     int // token bucket capacity per client IP

	DatabaseURL    string
	Port           string
	AllowedOrigins string
	APIAuthToken   string
	GinMode        string
}

// Defaults mirror the documented defaults exactly.
func Defaults() Config {
	return Config{
		SketchDimension:            128,
		Bands:                      16,
		RowsPerBand:                8,
		CSSShingleK:                5,
		HTMLShingleK:               7,
		CandidateThreshold:         0.30,
		RuleOverlapFloor:           0.50,
		RuleMinCommonDecls:         2,
		PageBudgetK:                8,
		DriftResolvedSimilarity:    0.35,
		DriftResolvedMinimumDrift:  0.20,
		DriftInsufficientMax:       0.10,
		StructuralArityCap:         10,
		Patterns:                   DefaultPatternTable(),
		RateLimitPerMinute:         30,
		RateLimitBurst:             5,
		Port:                       "5339",
		GinMode:                    "debug",
	}
}

// DefaultPatternTable is version 1 of the deny-lists, seeded from the
// common Webflow/utility-framework conventions.
func DefaultPatternTable() PatternTable {
	return PatternTable{
		Version: 1,
		FrameworkClassPrefixes: []string{
			"w-", "wf-", "is-", "has-",
			"tw-", "bs-", "mdc-", "mat-",
		},
		ResetSelectors: []string{
			"*", "html", "body",
		},
		GenericStructuralPatterns: []string{
			"div[div]", "div[div,div]", "ul[li]", "ol[li]",
		},
	}
}

// Load reads defaults, overlays environment variables (SIMENGINE_ prefixed,
// matching viper's AutomaticEnv convention), and overlays an optional
// pattern-table file at patternTablePath if non-empty. It validates b*r==N
// returning ErrConfigInvalid on any violation.
func Load(patternTablePath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("SIMENGINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindDefaults(v, cfg)

	cfg.SketchDimension = v.GetInt("sketch_dimension")
	cfg.Bands = v.GetInt("bands")
	cfg.RowsPerBand = v.GetInt("rows_per_band")
	cfg.CSSShingleK = v.GetInt("css_shingle_k")
	cfg.HTMLShingleK = v.GetInt("html_shingle_k")
	cfg.CandidateThreshold = v.GetFloat64("candidate_threshold")
	cfg.RuleOverlapFloor = v.GetFloat64("rule_overlap_floor")
	cfg.RuleMinCommonDecls = v.GetInt("rule_min_common_decls")
	cfg.PageBudgetK = v.GetInt("page_budget_k")
	cfg.DriftResolvedSimilarity = v.GetFloat64("drift_resolved_similarity")
	cfg.DriftResolvedMinimumDrift = v.GetFloat64("drift_resolved_minimum_drift")
	cfg.DriftInsufficientMax = v.GetFloat64("drift_insufficient_max")
	cfg.StructuralArityCap = v.GetInt("structural_arity_cap")
	cfg.RateLimitPerMinute = v.GetInt("rate_limit_per_minute")
	cfg.RateLimitBurst = v.GetInt("rate_limit_burst")

	cfg.DatabaseURL = v.GetString("database_url")
	cfg.Port = v.GetString("port")
	cfg.AllowedOrigins = v.GetString("allowed_origins")
	cfg.APIAuthToken = v.GetString("api_auth_token")
	cfg.GinMode = v.GetString("gin_mode")

	if patternTablePath != "" {
		table, err := LoadPatternTable(patternTablePath)
		if err != nil {
			return Config{}, fmt.Errorf("%w: loading pattern table: %v", models.ErrConfigInvalid, err)
		}
		cfg.Patterns = table
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("sketch_dimension", cfg.SketchDimension)
	v.SetDefault("bands", cfg.Bands)
	v.SetDefault("rows_per_band", cfg.RowsPerBand)
	v.SetDefault("css_shingle_k", cfg.CSSShingleK)
	v.SetDefault("html_shingle_k", cfg.HTMLShingleK)
	v.SetDefault("candidate_threshold", cfg.CandidateThreshold)
	v.SetDefault("rule_overlap_floor", cfg.RuleOverlapFloor)
	v.SetDefault("rule_min_common_decls", cfg.RuleMinCommonDecls)
	v.SetDefault("page_budget_k", cfg.PageBudgetK)
	v.SetDefault("drift_resolved_similarity", cfg.DriftResolvedSimilarity)
	v.SetDefault("drift_resolved_minimum_drift", cfg.DriftResolvedMinimumDrift)
	v.SetDefault("drift_insufficient_max", cfg.DriftInsufficientMax)
	v.SetDefault("structural_arity_cap", cfg.StructuralArityCap)
	v.SetDefault("rate_limit_per_minute", cfg.RateLimitPerMinute)
	v.SetDefault("rate_limit_burst", cfg.RateLimitBurst)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("gin_mode", cfg.GinMode)
}

// Validate enforces the invariants that are fatal at startup.
func (c Config) Validate() error {
	if c.Bands*c.RowsPerBand != c.SketchDimension {
		return fmt.Errorf("%w: bands(%d)*rows_per_band(%d) != sketch_dimension(%d)",
			models.ErrConfigInvalid, c.Bands, c.RowsPerBand, c.SketchDimension)
	}
	if c.SketchDimension <= 0 {
		return fmt.Errorf("%w: sketch_dimension must be positive", models.ErrConfigInvalid)
	}
	if c.CandidateThreshold < 0 || c.CandidateThreshold > 1 {
		return fmt.Errorf("%w: candidate_threshold must be in [0,1]", models.ErrConfigInvalid)
	}
	if c.RuleOverlapFloor < 0 || c.RuleOverlapFloor > 1 {
		return fmt.Errorf("%w: rule_overlap_floor must be in [0,1]", models.ErrConfigInvalid)
	}
	return nil
}
