package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config is the effective interceptor configuration produced by Resolve.
// It is immutable once resolved and is handed to components by pointer.
type Config struct {
	LRS          LRSConfig          `mapstructure:"lrs"`
	XAPI         XAPIConfig         `mapstructure:"xapi"`
	SCORM        SCORMConfig        `mapstructure:"scorm"`
	Interception InterceptionConfig `mapstructure:"interception"`
	Debug        bool               `mapstructure:"debug"`

	// Raw is the merged configuration tree, unknown keys included.
	Raw map[string]any `mapstructure:"-"`
}

// LRSConfig holds the Learning Record Store connection settings.
type LRSConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// AuthKey is used in place of Username/Password when either is empty.
	AuthKey string `mapstructure:"authKey"`
}

// XAPIConfig controls how statements are built.
type XAPIConfig struct {
	CourseName string      `mapstructure:"courseName"`
	Verbs      VerbsConfig `mapstructure:"verbs"`
	Agent      AgentConfig `mapstructure:"agent"`
}

// VerbsConfig maps SCORM elements to xAPI verb names.
type VerbsConfig struct {
	DefaultVerb string            `mapstructure:"defaultVerb"`
	Map         map[string]string `mapstructure:"map"`
}

// AgentConfig holds the actor used when the host has no learner.
type AgentConfig struct {
	DefaultAgent Agent `mapstructure:"defaultAgent"`
}

// Agent identifies a learner.
type Agent struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// SCORMConfig names the host collaborators.
type SCORMConfig struct {
	// SetValueFunction is the registry name of the tracking function to wrap.
	SetValueFunction string `mapstructure:"setValueFunction"`

	// API is the registry name of the learner API object.
	API string `mapstructure:"api"`

	// Origin is the base URI of the hosting page; activity ids and context
	// extension keys are built under it.
	Origin string `mapstructure:"origin"`
}

// InterceptionConfig tunes discovery and the post-call delay.
type InterceptionConfig struct {
	MaxAttempts   int           `mapstructure:"maxAttempts"`
	PollInterval  time.Duration `mapstructure:"pollInterval"`
	DispatchDelay time.Duration `mapstructure:"dispatchDelay"`
}

// Default values.
const (
	DefaultCourseName       = "DEFAULT_COURSE"
	DefaultVerb             = "interacted"
	DefaultAgentID          = "DEFAULT_AGENT_ID"
	DefaultAgentName        = "DEFAULT_AGENT_NAME"
	DefaultSetValueFunction = "SCORM_CallLMSSetValue"
	DefaultAPI              = "SCORM_objAPI"
	DefaultOrigin           = "http://localhost"
	DefaultMaxAttempts      = 10
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultDispatchDelay    = 50 * time.Millisecond
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid interceptor configuration")

// Defaults returns a fresh copy of the built-in configuration tree.
func Defaults() map[string]any {
	return map[string]any{
		"lrs": map[string]any{
			"endpoint": "",
			"username": "",
			"password": "",
			"authKey":  "",
		},
		"xapi": map[string]any{
			"courseName": DefaultCourseName,
			"verbs": map[string]any{
				"defaultVerb": DefaultVerb,
				"map": map[string]any{
					"cmi.suspend_data": "interacted",
				},
			},
			"agent": map[string]any{
				"defaultAgent": map[string]any{
					"id":    DefaultAgentID,
					"name":  DefaultAgentName,
					"email": "",
				},
			},
		},
		"scorm": map[string]any{
			"setValueFunction": DefaultSetValueFunction,
			"api":              DefaultAPI,
			"origin":           DefaultOrigin,
		},
		"interception": map[string]any{
			"maxAttempts":   DefaultMaxAttempts,
			"pollInterval":  DefaultPollInterval.String(),
			"dispatchDelay": DefaultDispatchDelay.String(),
		},
		"debug": false,
	}
}

// Default returns the resolved default configuration.
func Default() *Config {
	cfg, err := Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults do not decode: %v", err))
	}
	return cfg
}

// Resolve merges overrides onto Defaults and decodes the result.
// Verb names are not checked here; see Validate.
func Resolve(overrides map[string]any) (*Config, error) {
	tree := MergeDeep(Defaults(), overrides)

	cfg, err := decode(tree)
	if err != nil {
		return nil, err
	}
	cfg.Raw = tree

	if err := cfg.validateShape(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(tree map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			intToDurationHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := decoder.Decode(tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// intToDurationHook reads bare numbers as milliseconds, the unit the
// interception settings are usually written in.
func intToDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	}
	return data, nil
}

func (c *Config) validateShape() error {
	var errs []string

	if strings.TrimSpace(c.SCORM.SetValueFunction) == "" {
		errs = append(errs, "scorm.setValueFunction is required")
	}
	if c.Interception.MaxAttempts < 0 {
		errs = append(errs, "interception.maxAttempts must be >= 0")
	}
	if c.Interception.PollInterval <= 0 {
		errs = append(errs, "interception.pollInterval must be > 0")
	}
	if c.Interception.DispatchDelay < 0 {
		errs = append(errs, "interception.dispatchDelay must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// VerbNames returns every verb name the configuration can resolve to.
func (c *Config) VerbNames() []string {
	names := make([]string, 0, len(c.XAPI.Verbs.Map)+1)
	if c.XAPI.Verbs.DefaultVerb != "" {
		names = append(names, c.XAPI.Verbs.DefaultVerb)
	}
	for _, name := range c.XAPI.Verbs.Map {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Validate checks that every configured verb name is known to the vocabulary.
func (c *Config) Validate(known func(name string) bool) error {
	var unknown []string
	seen := make(map[string]bool)
	for _, name := range c.VerbNames() {
		if seen[name] {
			continue
		}
		seen[name] = true
		if !known(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unknown verbs %s", ErrInvalidConfig, strings.Join(unknown, ", "))
	}
	return nil
}
