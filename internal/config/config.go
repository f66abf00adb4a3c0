// Package config resolves runtime configuration from the .issai config
// file, ISSAI_* environment variables, and CLI flags, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"regexp"

	"github.com/spf13/viper"
)

// UserPolicy controls how user references in imported data are mapped onto
// the target server's accounts.
type UserPolicy string

const (
	// UserPolicyNever keeps user references as recorded; a user missing on
	// the server is a hard error.
	UserPolicyNever UserPolicy = "never"
	// UserPolicyAlways replaces every user reference with the identity
	// running the import.
	UserPolicyAlways UserPolicy = "always"
	// UserPolicyMissing replaces only users absent on the server.
	UserPolicyMissing UserPolicy = "missing"
)

// ParseUserPolicy validates a policy string.
func ParseUserPolicy(s string) (UserPolicy, error) {
	switch UserPolicy(s) {
	case UserPolicyNever, UserPolicyAlways, UserPolicyMissing:
		return UserPolicy(s), nil
	}
	return "", fmt.Errorf("invalid user policy %q (never, always, missing)", s)
}

// AttachmentPatterns holds include/exclude regular expressions applied to
// attachment file names. An empty include list admits everything.
type AttachmentPatterns struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`

	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// Allows reports whether a file name passes the patterns.
func (p *AttachmentPatterns) Allows(name string) bool {
	for _, re := range p.exclude {
		if re.MatchString(name) {
			return false
		}
	}
	if len(p.include) == 0 {
		return true
	}
	for _, re := range p.include {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (p *AttachmentPatterns) compile(scope string) error {
	compile := func(exprs []string) ([]*regexp.Regexp, error) {
		res := make([]*regexp.Regexp, 0, len(exprs))
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("%s pattern %q: %w", scope, expr, err)
			}
			res = append(res, re)
		}
		return res, nil
	}
	var err error
	if p.include, err = compile(p.Include); err != nil {
		return err
	}
	p.exclude, err = compile(p.Exclude)
	return err
}

// Config holds all resolved runtime configuration.
type Config struct {
	ServerURL   string `mapstructure:"server_url"`
	Token       string `mapstructure:"token"`
	WorkingPath string `mapstructure:"working_path"`
	ResultsDB   string `mapstructure:"results_db"`

	Download AttachmentPatterns `mapstructure:"download"`
	Upload   AttachmentPatterns `mapstructure:"upload"`

	// CustomStatuses remaps recorded execution status names to the target
	// installation's names before lookup.
	CustomStatuses map[string]string `mapstructure:"custom_statuses"`

	UserPolicy string `mapstructure:"user_policy"`
	DryRun     bool   `mapstructure:"dry_run"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags, and compiles the
// attachment patterns.
func Load() (*Config, error) {
	viper.SetDefault("server_url", "")
	viper.SetDefault("token", "")
	viper.SetDefault("working_path", ".")
	viper.SetDefault("results_db", "issai-results.db")
	viper.SetDefault("user_policy", string(UserPolicyNever))
	viper.SetDefault("dry_run", false)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("resolving configuration: %w", err)
	}
	if _, err := ParseUserPolicy(cfg.UserPolicy); err != nil {
		return nil, err
	}
	if err := cfg.Download.compile("download"); err != nil {
		return nil, err
	}
	if err := cfg.Upload.compile("upload"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MapStatus applies the custom status remapping table to a recorded status
// name; names without a mapping pass through unchanged.
func (c *Config) MapStatus(name string) string {
	if mapped, ok := c.CustomStatuses[name]; ok {
		return mapped
	}
	return name
}
