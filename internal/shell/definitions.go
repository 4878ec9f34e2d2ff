package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// LoadDefinitions reads command definitions from path.
//
// A directory is scanned for *.json files, each holding one definition; the
// command is named by the "name" field or, failing that, the file name. A
// regular file must hold a JSON object mapping command names to definitions.
//
// Definition fields:
//
//	description  one-line summary shown by help
//	help         longer text shown by "help <name>"
//	output       string or array of lines written to stdout
//	error        text written to stderr
//
// output and error expand $1..$9, $@, $# and ${env.KEY}.
func LoadDefinitions(path string) ([]*Command, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat commands path: %w", err)
	}

	var cmds []*Command
	if info.IsDir() {
		cmds, err = loadDefinitionDir(path)
	} else {
		cmds, err = loadDefinitionFile(path)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds, nil
}

func loadDefinitionDir(dir string) ([]*Command, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read commands dir: %w", err)
	}

	var cmds []*Command
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		file := filepath.Join(dir, entry.Name())
		def, err := readDefinition(file)
		if err != nil {
			return nil, err
		}
		if !def.IsObject() {
			return nil, fmt.Errorf("definition in %s must be a json object", file)
		}
		name := def.Get("name").String()
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), ".json")
		}
		cmds = append(cmds, defineCommand(name, def))
	}
	return cmds, nil
}

func loadDefinitionFile(file string) ([]*Command, error) {
	root, err := readDefinition(file)
	if err != nil {
		return nil, err
	}
	if !root.IsObject() {
		return nil, fmt.Errorf("definitions in %s must be a json object", file)
	}

	var cmds []*Command
	root.ForEach(func(key, def gjson.Result) bool {
		if !def.IsObject() {
			err = fmt.Errorf("definition %q in %s must be a json object", key.String(), file)
			return false
		}
		cmds = append(cmds, defineCommand(key.String(), def))
		return true
	})
	if err != nil {
		return nil, err
	}
	return cmds, nil
}

func readDefinition(file string) (gjson.Result, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("invalid json in %s", file)
	}
	return gjson.ParseBytes(data), nil
}

func defineCommand(name string, def gjson.Result) *Command {
	var lines []string
	output := def.Get("output")
	if output.IsArray() {
		for _, line := range output.Array() {
			lines = append(lines, line.String())
		}
	} else if output.Exists() {
		lines = []string{output.String()}
	}
	errText := def.Get("error").String()

	return &Command{
		Name:        name,
		Description: def.Get("description").String(),
		Help:        def.Get("help").String(),
		Run: func(s *Session, args []string) error {
			for _, line := range lines {
				fmt.Fprintln(s.Stdout, s.expand(line, name, args))
			}
			if errText != "" {
				fmt.Fprintln(s.Stderr, s.expand(errText, name, args))
			}
			return nil
		},
	}
}

// expand substitutes positional arguments and ${env.KEY} references.
func (s *Session) expand(text, name string, args []string) string {
	return os.Expand(text, func(key string) string {
		switch {
		case key == "@" || key == "*":
			return strings.Join(args, " ")
		case key == "#":
			return strconv.Itoa(len(args))
		case strings.HasPrefix(key, "env."):
			return s.env[strings.TrimPrefix(key, "env.")]
		}
		n, err := strconv.Atoi(key)
		if err != nil {
			return ""
		}
		if n == 0 {
			return name
		}
		if n <= len(args) {
			return args[n-1]
		}
		return ""
	})
}
