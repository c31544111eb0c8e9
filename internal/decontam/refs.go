package decontam

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed data/refs.yaml
var refsYAML []byte

// RefPanel names the reference files used to decontaminate one organism.
type RefPanel struct {
	Fasta string `yaml:"fasta"`
}

type refRegistry struct {
	References map[string]RefPanel `yaml:"references"`
}

func loadRefRegistry() (refRegistry, error) {
	var reg refRegistry
	if err := yaml.Unmarshal(refsYAML, &reg); err != nil {
		return refRegistry{}, fmt.Errorf("parsing reference registry: %w", err)
	}
	return reg, nil
}

// DataPath locates the directory holding reference genomes. An explicit
// override wins; otherwise a data directory next to the executable is used.
func DataPath(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("data path %s: %w", override, err)
		}
		return override, nil
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Join(filepath.Dir(exe), "data")
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}
	return "", errors.New("could not find data directory")
}

// ReferencePath returns the decontamination reference FASTA for organism,
// resolved under dataPath. Organisms without a registered panel are an error.
func ReferencePath(dataPath, organism string) (string, error) {
	reg, err := loadRefRegistry()
	if err != nil {
		return "", err
	}
	panel, ok := reg.References[organism]
	if !ok {
		return "", fmt.Errorf("no decontamination reference for organism %q", organism)
	}
	return filepath.Join(dataPath, "refs", panel.Fasta), nil
}
