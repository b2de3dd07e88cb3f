package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads an override tree from a YAML or JSON file. The format is
// chosen by extension; anything that is not .json is read as YAML.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	overrides := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &overrides); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		return overrides, nil
	}

	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return overrides, nil
}

// envBinding maps an environment variable onto a configuration path.
type envBinding struct {
	key  string
	path []string
}

var envBindings = []envBinding{
	{"SCORM_LRS_ENDPOINT", []string{"lrs", "endpoint"}},
	{"SCORM_LRS_USERNAME", []string{"lrs", "username"}},
	{"SCORM_LRS_PASSWORD", []string{"lrs", "password"}},
	{"SCORM_LRS_AUTH_KEY", []string{"lrs", "authKey"}},
	{"SCORM_COURSE_NAME", []string{"xapi", "courseName"}},
	{"SCORM_DEFAULT_VERB", []string{"xapi", "verbs", "defaultVerb"}},
	{"SCORM_AGENT_ID", []string{"xapi", "agent", "defaultAgent", "id"}},
	{"SCORM_AGENT_NAME", []string{"xapi", "agent", "defaultAgent", "name"}},
	{"SCORM_AGENT_EMAIL", []string{"xapi", "agent", "defaultAgent", "email"}},
	{"SCORM_SET_VALUE_FUNCTION", []string{"scorm", "setValueFunction"}},
	{"SCORM_API", []string{"scorm", "api"}},
	{"SCORM_ORIGIN", []string{"scorm", "origin"}},
	{"SCORM_MAX_ATTEMPTS", []string{"interception", "maxAttempts"}},
	{"SCORM_POLL_INTERVAL", []string{"interception", "pollInterval"}},
	{"SCORM_DISPATCH_DELAY", []string{"interception", "dispatchDelay"}},
	{"SCORM_DEBUG", []string{"debug"}},
}

// FromEnv returns an override tree holding only the SCORM_* variables that
// are set. Values stay strings; decoding converts them.
func FromEnv() map[string]any {
	overrides := map[string]any{}
	for _, b := range envBindings {
		val := getEnv(b.key, "")
		if val == "" {
			continue
		}
		setPath(overrides, b.path, val)
	}
	return overrides
}

func setPath(tree map[string]any, path []string, val any) {
	node := tree
	for _, key := range path[:len(path)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[key] = next
		}
		node = next
	}
	node[path[len(path)-1]] = val
}

// Overrides combines override trees left to right, later ones winning.
func Overrides(trees ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, tree := range trees {
		out = MergeDeep(out, tree)
	}
	return out
}
