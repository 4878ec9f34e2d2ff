package shell

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultPrompt is used for ps1 and ps2 when the environment does not set them.
const DefaultPrompt = "> "

// Env is the session environment. ps1 is the primary prompt and ps2 the
// continuation prompt.
type Env map[string]string

// ParseEnv decodes the --env argument. An empty string yields the defaults.
func ParseEnv(raw string) (Env, error) {
	env := Env{}
	if strings.TrimSpace(raw) != "" {
		if !gjson.Valid(raw) {
			return nil, fmt.Errorf("invalid env json: %s", raw)
		}
		parsed := gjson.Parse(raw)
		if !parsed.IsObject() {
			return nil, fmt.Errorf("env must be a json object, got %s", parsed.Type)
		}
		parsed.ForEach(func(key, value gjson.Result) bool {
			env[key.String()] = value.String()
			return true
		})
	}

	for _, key := range []string{"ps1", "ps2"} {
		if env[key] == "" {
			env[key] = DefaultPrompt
		}
	}
	return env, nil
}

// Keys returns the environment keys in sorted order.
func (e Env) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
