// Package detector prepares and runs fine-tuning of a YOLO banknote detector.
// Training itself is delegated to the Ultralytics command line tool; this
// package validates the dataset manifest, renders the trainer arguments and
// supervises the child process.
package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Manifest is a YOLO dataset description (data.yaml).
type Manifest struct {
	Path  string   `yaml:"path"`
	Train PathList `yaml:"train"`
	Val   PathList `yaml:"val"`
	Test  PathList `yaml:"test"`
	NC    int      `yaml:"nc"`
	Names Names    `yaml:"names"`

	file string
}

// PathList accepts either a single path or a list of paths.
type PathList []string

func (p *PathList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s != "" {
			*p = PathList{s}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a path or a list of paths", node.Line)
	}
}

// Names holds class names by index. In YAML it may be written as a list or
// as an index to name map.
type Names []string

func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	case yaml.MappingNode:
		var byIndex map[int]string
		if err := node.Decode(&byIndex); err != nil {
			return err
		}
		keys := make([]int, 0, len(byIndex))
		for k := range byIndex {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for i, k := range keys {
			if k != i {
				return fmt.Errorf("line %d: class indices must be 0..%d without gaps, found %d", node.Line, len(keys)-1, k)
			}
		}
		out := make(Names, len(keys))
		for _, k := range keys {
			out[k] = byIndex[k]
		}
		*n = out
		return nil
	default:
		return fmt.Errorf("line %d: names must be a list or a map", node.Line)
	}
}

// LoadManifest reads and parses a dataset manifest. It does not check that
// the referenced directories exist; call Validate for that.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse dataset manifest %s: %w", path, err)
	}
	m.file = path
	return &m, nil
}

// Root is the directory the split paths are relative to: the manifest's
// path field, itself taken relative to the manifest file, or the manifest's
// own directory.
func (m *Manifest) Root() string {
	dir := filepath.Dir(m.file)
	switch {
	case m.Path == "":
		return dir
	case filepath.IsAbs(m.Path):
		return m.Path
	default:
		return filepath.Join(dir, m.Path)
	}
}

// Resolve returns p made absolute against Root.
func (m *Manifest) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root(), p)
}

// Validate checks that the train and val splits are present and exist on
// disk, and that nc agrees with the class names.
func (m *Manifest) Validate() error {
	if len(m.Names) == 0 {
		return fmt.Errorf("manifest %s: no class names", m.file)
	}
	if m.NC != 0 && m.NC != len(m.Names) {
		return fmt.Errorf("manifest %s: nc is %d but %d names are listed", m.file, m.NC, len(m.Names))
	}

	splits := []struct {
		name     string
		paths    PathList
		required bool
	}{
		{"train", m.Train, true},
		{"val", m.Val, true},
		{"test", m.Test, false},
	}
	for _, s := range splits {
		if len(s.paths) == 0 {
			if s.required {
				return fmt.Errorf("manifest %s: %s split is missing", m.file, s.name)
			}
			continue
		}
		for _, p := range s.paths {
			if _, err := os.Stat(m.Resolve(p)); err != nil {
				return fmt.Errorf("manifest %s: %s split: %w", m.file, s.name, err)
			}
		}
	}
	return nil
}

// Classes returns the number of classes the detector is trained for.
func (m *Manifest) Classes() int {
	return len(m.Names)
}
