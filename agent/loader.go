package agent

import (
	"bytes"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/vaultflow/errors"
)

// Load reads the agent document at path. The file is read on every call.
func Load(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("agent config", path).WithCause(err)
		}
		return nil, fmt.Errorf("agent: reading %s: %w", path, err)
	}
	cfgs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("agent: parsing %s: %w", path, err)
	}
	return cfgs, nil
}

// Parse decodes an agent document. A single mapping yields a one-element
// list, a sequence yields one Config per item and an empty document yields
// an empty list. Items that do not decode are kept as Invalid configs; only
// a document that is not YAML or not agent-shaped fails.
func Parse(data []byte) ([]Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Config{}, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Configuration("", "invalid YAML").WithCause(err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return []Config{}, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.MappingNode:
		return []Config{decodeAgent(root, "agent")}, nil
	case yaml.SequenceNode:
		cfgs := make([]Config, 0, len(root.Content))
		for i, item := range root.Content {
			cfgs = append(cfgs, decodeAgent(item, fmt.Sprintf("agents[%d]", i)))
		}
		return cfgs, nil
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return []Config{}, nil
		}
	}
	return nil, errors.Configuration("", "agent document must be a mapping or a list of mappings")
}

// decodeAgent decodes one definition. A definition that does not decode
// becomes an Invalid placeholder carrying whatever id it declares.
func decodeAgent(node *yaml.Node, where string) Config {
	if node.Kind != yaml.MappingNode {
		return Invalid("", where+": agent definition must be a mapping")
	}
	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return Invalid(nodeID(node), where+": invalid agent definition: "+err.Error())
	}
	return cfg
}

func nodeID(node *yaml.Node) string {
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Value == "id" && v.Kind == yaml.ScalarNode {
			return v.Value
		}
	}
	return ""
}

// Find returns the agent with the given id.
func Find(cfgs []Config, id string) (*Config, error) {
	for i := range cfgs {
		if cfgs[i].ID == id {
			return &cfgs[i], nil
		}
	}
	return nil, errors.NotFound("agent", id)
}

// Select picks the agent a command should run. With an empty id the document
// must hold exactly one agent.
func Select(cfgs []Config, id string) (*Config, error) {
	var selected *Config
	if id != "" {
		cfg, err := Find(cfgs, id)
		if err != nil {
			return nil, err
		}
		selected = cfg
	} else {
		switch len(cfgs) {
		case 0:
			return nil, errors.Configuration("", "agent document is empty")
		case 1:
			selected = &cfgs[0]
		default:
			return nil, errors.Configuration("", fmt.Sprintf("document holds %d agents, --id is required", len(cfgs)))
		}
	}
	if p := selected.Problem(); p != "" {
		return nil, errors.Configuration(selected.ID, p)
	}
	return selected, nil
}
