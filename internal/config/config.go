package config

import (
	"fmt"
	"time"

	scheduler "github.com/TudorHulban/production-scheduler"
	"github.com/spf13/viper"
)

// EnvPrefix maps PRODPLAN_* environment variables onto config keys.
const EnvPrefix = "PRODPLAN"

// BatchClassRule maps one step name onto a batch class. Rules are a list
// because viper lowercases map keys and step names are case sensitive.
type BatchClassRule struct {
	StepName string `mapstructure:"step"`
	Class    string `mapstructure:"class"`
}

// Config holds all runtime configuration for a prodplan session.
// Values are populated from .prodplan.yaml, PRODPLAN_* env vars, and CLI flags.
type Config struct {
	Snapshot           string           `mapstructure:"snapshot"`
	History            string           `mapstructure:"history"`
	TimeLimit          time.Duration    `mapstructure:"time_limit"`
	Workers            int              `mapstructure:"workers"`
	HorizonSlackDays   int64            `mapstructure:"horizon_slack_days"`
	Weighting          string           `mapstructure:"weighting"`
	BatchableResources []string         `mapstructure:"batchable_resources"`
	BatchClasses       []BatchClassRule `mapstructure:"batch_classes"`
	MaxAttempts        int              `mapstructure:"max_attempts"`
	Today              string           `mapstructure:"today"`
	Verbose            bool             `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("snapshot", "plan.toml")
	viper.SetDefault("history", "")
	viper.SetDefault("time_limit", scheduler.DefaultTimeLimit)
	viper.SetDefault("workers", scheduler.DefaultWorkers)
	viper.SetDefault("horizon_slack_days", scheduler.DefaultHorizonSlackDays)
	viper.SetDefault("weighting", "inverse-rank")
	viper.SetDefault("batchable_resources", []string{"Satınalma", "Kesimhane", "Tasarım"})
	viper.SetDefault("batch_classes", []BatchClassRule{})
	viper.SetDefault("max_attempts", 5)
	viper.SetDefault("today", "")
	viper.SetDefault("verbose", false)

	var cfg Config
	if errUnmarshal := viper.Unmarshal(&cfg); errUnmarshal != nil {
		return Config{},
			fmt.Errorf("failed to decode configuration: %w", errUnmarshal)
	}

	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{},
			errValidate
	}

	return cfg,
		nil
}

// Validate rejects settings the solver cannot run with.
func (c Config) Validate() error {
	if c.TimeLimit <= 0 {
		return fmt.Errorf("time_limit must be positive, got %s", c.TimeLimit)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}

	if c.HorizonSlackDays < 0 {
		return fmt.Errorf("horizon_slack_days must not be negative, got %d", c.HorizonSlackDays)
	}

	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}

	if _, errWeight := scheduler.WeightByName(c.Weighting); errWeight != nil {
		return errWeight
	}

	if _, errToday := c.TodayDate(); errToday != nil {
		return errToday
	}

	return nil
}

// PriorityWeight resolves the configured weighting name.
func (c Config) PriorityWeight() scheduler.WeightFunc {
	weight, errWeight := scheduler.WeightByName(c.Weighting)
	if errWeight != nil {
		return scheduler.InverseRankWeight
	}

	return weight
}

// TodayDate returns the configured plan date, zero when unset.
func (c Config) TodayDate() (time.Time, error) {
	if len(c.Today) == 0 {
		return time.Time{}, nil
	}

	date, errParse := scheduler.ParseDate(c.Today)
	if errParse != nil {
		return time.Time{},
			fmt.Errorf("today: %w", errParse)
	}

	return date,
		nil
}

// BatchClassMap flattens the batch class rules, later rules winning.
func (c Config) BatchClassMap() map[string]string {
	result := make(map[string]string, len(c.BatchClasses))

	for _, rule := range c.BatchClasses {
		if len(rule.StepName) == 0 || len(rule.Class) == 0 {
			continue
		}

		result[rule.StepName] = rule.Class
	}

	return result
}

// SolveOptions converts the solver settings.
func (c Config) SolveOptions() *scheduler.SolveOptions {
	return &scheduler.SolveOptions{
		TimeLimit:        c.TimeLimit,
		Workers:          c.Workers,
		HorizonSlackDays: c.HorizonSlackDays,
		PriorityWeight:   c.PriorityWeight(),
	}
}
