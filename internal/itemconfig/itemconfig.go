package itemconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

// listSeparator splits multi-entry string attributes such as
// "init | 0 5 * * *".
const listSeparator = "|"

// attributes the engine interprets. Anything else lands in
// item.Config.Attributes.
type attributes struct {
	Name           string   `mapstructure:"name"`
	Type           string   `mapstructure:"type"`
	Value          any      `mapstructure:"value"`
	Cache          bool     `mapstructure:"cache"`
	EnforceUpdates bool     `mapstructure:"enforce_updates"`
	Threshold      string   `mapstructure:"threshold"`
	Eval           string   `mapstructure:"eval"`
	EvalTrigger    []string `mapstructure:"eval_trigger"`
	Autotimer      string   `mapstructure:"autotimer"`
	Cycle          string   `mapstructure:"cycle"`
	Crontab        []string `mapstructure:"crontab"`

	Rest map[string]any `mapstructure:",remain"`
}

// Load reads the item tree at path, a file or a directory of files.
func Load(path string) ([]item.Node, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading item tree: %w", err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, fmt.Errorf("listing item files: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, path)
	}
	sort.Strings(files)

	var nodes []item.Node
	for _, f := range files {
		n, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n...)
	}
	return nodes, nil
}

// LoadFile reads one item tree file.
func LoadFile(path string) ([]item.Node, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("reading item file: %w", err)
	}
	nodes, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nodes, nil
}

// Parse decodes a tree document. Key order is preserved.
func Parse(data []byte) ([]item.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	var nodes []item.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		n, err := parseNode(root.Content[i].Value, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func parseNode(key string, body *yaml.Node) (item.Node, error) {
	node := item.Node{Key: key}
	raw := make(map[string]any)

	if body.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(body.Content); i += 2 {
			k, v := body.Content[i].Value, body.Content[i+1]
			if v.Kind == yaml.MappingNode && k != "value" {
				child, err := parseNode(k, v)
				if err != nil {
					return item.Node{}, err
				}
				node.Children = append(node.Children, child)
				continue
			}
			var decoded any
			if err := v.Decode(&decoded); err != nil {
				return item.Node{}, fmt.Errorf("item %s attribute %s (line %d): %w", key, k, v.Line, err)
			}
			raw[k] = decoded
		}
	}

	cfg, err := decodeConfig(raw)
	if err != nil {
		return item.Node{}, fmt.Errorf("item %s (line %d): %w", key, body.Line, err)
	}
	node.Config = cfg
	return node, nil
}

// decodeConfig maps raw attributes onto an item.Config.
func decodeConfig(raw map[string]any) (item.Config, error) {
	var attrs attributes
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &attrs,
		WeaklyTypedInput: true,
		DecodeHook:       splitListHook,
	})
	if err != nil {
		return item.Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return item.Config{}, err
	}

	cfg := item.Config{
		Name:           attrs.Name,
		Type:           item.Type(strings.TrimSpace(attrs.Type)),
		Value:          attrs.Value,
		Cache:          attrs.Cache,
		EnforceUpdates: attrs.EnforceUpdates,
		Threshold:      attrs.Threshold,
		Eval:           strings.TrimSpace(attrs.Eval),
		EvalTrigger:    attrs.EvalTrigger,
		Autotimer:      attrs.Autotimer,
		Cycle:          attrs.Cycle,
		Crontab:        strings.Join(attrs.Crontab, " "+listSeparator+" "),
	}
	if len(attrs.Rest) > 0 {
		cfg.Attributes = attrs.Rest
	}
	return cfg, nil
}

// splitListHook turns "a | b" into []string{"a", "b"} when the target is a
// string slice.
func splitListHook(_, to reflect.Type, data any) (any, error) {
	s, ok := data.(string)
	if !ok || to.Kind() != reflect.Slice {
		return data, nil
	}
	var out []string
	for _, part := range strings.Split(s, listSeparator) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
