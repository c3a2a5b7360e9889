package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/entityxtract/entityxtract/pkg/extraction"
)

// targetsFile is the on-disk shape of a targets definition. Each entry
// carries a kind discriminator; the rest of the fields depend on it.
type targetsFile struct {
	Targets []yaml.Node `yaml:"targets"`
}

// LoadTargets parses a targets YAML file into extraction targets.
func LoadTargets(path string) ([]extraction.Target, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads a user-specified targets file
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	return ParseTargets(data)
}

// ParseTargets parses targets YAML bytes.
func ParseTargets(data []byte) ([]extraction.Target, error) {
	var file targetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid targets YAML: %w", err)
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("targets file defines no targets")
	}

	targets := make([]extraction.Target, 0, len(file.Targets))
	for i, node := range file.Targets {
		var probe struct {
			Kind string `yaml:"kind"`
		}
		if err := node.Decode(&probe); err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}

		switch probe.Kind {
		case "table":
			var t extraction.TableTarget
			if err := node.Decode(&t); err != nil {
				return nil, fmt.Errorf("target %d: %w", i, err)
			}
			targets = append(targets, t)
		case "string":
			var s extraction.StringTarget
			if err := node.Decode(&s); err != nil {
				return nil, fmt.Errorf("target %d: %w", i, err)
			}
			targets = append(targets, s)
		case "":
			return nil, fmt.Errorf("target %d: missing kind (use table or string)", i)
		default:
			return nil, fmt.Errorf("target %d: unknown kind %q (use table or string)", i, probe.Kind)
		}
	}
	return targets, nil
}
