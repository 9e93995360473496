package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root build configuration.
type Config struct {
	Version      string                 `yaml:"version"`
	Deps         DependencyMap          `yaml:"deps"`
	ReleasesRoot string                 `yaml:"releases_root,omitempty"`
	Toolchains   []ToolchainRequirement `yaml:"toolchains,omitempty"`
	HistoryDB    string                 `yaml:"history_db,omitempty"`
}

// Dependency is one named entry in the build configuration.
type Dependency struct {
	Key            string     `yaml:"-"` // map key, filled during unmarshalling
	Name           string     `yaml:"name,omitempty"`
	Git            GitSource  `yaml:"git"`
	DefaultVersion *string    `yaml:"default_version,omitempty"`
	Branch         *string    `yaml:"branch,omitempty"`
	Deps           []string   `yaml:"deps,omitempty"`
	Runner         string     `yaml:"runner,omitempty"`
	Tools          []ToolSpec `yaml:"tools,omitempty"`
	Skip           bool       `yaml:"skip,omitempty"`
	Out            *OutConfig `yaml:"out,omitempty"`
}

// DisplayName returns the artifact-directory name for the dependency.
func (d *Dependency) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Key
}

// GitSource describes where a dependency's source lives.
// Shallow and InitSubmodules are pointers so a missing value is
// distinguishable from an explicit false during validation.
type GitSource struct {
	URL            string `yaml:"url"`
	Shallow        *bool  `yaml:"shallow"`
	InitSubmodules *bool  `yaml:"init_submodules"`
}

// ToolSpec configures one tool whose environment must be in effect while
// the dependency's build worker runs.
type ToolSpec struct {
	Name        string            `yaml:"name"`
	Env         map[string]string `yaml:"env,omitempty"`
	PrependPath []string          `yaml:"prepend_path,omitempty"`
}

// OutConfig holds release-publication rules for a dependency.
type OutConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// ToolchainRequirement describes a host toolchain the build expects.
type ToolchainRequirement struct {
	Name        string   `yaml:"name"`
	Command     string   `yaml:"command"`
	VersionArgs []string `yaml:"version_args,omitempty"`
	MinVersion  string   `yaml:"min_version,omitempty"`
}

// DependencyMap is a map of dependency key to configuration that preserves
// the YAML declaration order of its keys. Declaration order is load-bearing:
// graph resolution uses it to break ties deterministically.
type DependencyMap struct {
	entries map[string]*Dependency
	keys    []string
}

// UnmarshalYAML decodes the deps mapping while recording key order.
func (m *DependencyMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("deps must be a mapping, got %s", nodeKind(node))
	}
	m.entries = make(map[string]*Dependency, len(node.Content)/2)
	m.keys = m.keys[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		if _, dup := m.entries[key]; dup {
			return fmt.Errorf("duplicate dependency key: %s", key)
		}
		dep := &Dependency{}
		if err := valNode.Decode(dep); err != nil {
			return fmt.Errorf("dependency %s: %w", key, err)
		}
		dep.Key = key
		if dep.Name == "" {
			dep.Name = key
		}
		m.entries[key] = dep
		m.keys = append(m.keys, key)
	}
	return nil
}

// MarshalYAML renders the map in declaration order.
func (m DependencyMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		valNode := &yaml.Node{}
		if err := valNode.Encode(m.entries[key]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// Keys returns dependency keys in declaration order. The returned slice is shared; do not mutate.
func (m *DependencyMap) Keys() []string { return m.keys }

// Get looks up a dependency by key.
func (m *DependencyMap) Get(key string) (*Dependency, bool) {
	dep, ok := m.entries[key]
	return dep, ok
}

// Len returns the number of configured dependencies.
func (m *DependencyMap) Len() int { return len(m.keys) }

// NewDependencyMap builds a DependencyMap from ordered entries. Intended for
// tests and programmatic configuration; Load is the production path.
func NewDependencyMap(deps ...*Dependency) DependencyMap {
	m := DependencyMap{entries: make(map[string]*Dependency, len(deps))}
	for _, d := range deps {
		if d.Name == "" {
			d.Name = d.Key
		}
		m.entries[d.Key] = d
		m.keys = append(m.keys, d.Key)
	}
	return m
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "unknown node"
	}
}

// Load loads configuration from the specified file.
// A .env file next to the working directory is loaded first (if present) so
// that ${VAR} references in the YAML can resolve against it.
func Load(configPath string) (*Config, error) {
	// Missing .env is fine; only surface real load failures.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env could not be loaded: %v\n", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes configuration bytes, expanding environment variables first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	boolp := func(b bool) *bool { return &b }
	strp := func(s string) *string { return &s }

	example := Config{
		Version: "2026.08",
		Deps: NewDependencyMap(
			&Dependency{
				Key:            "zlib",
				Git:            GitSource{URL: "https://github.com/madler/zlib.git", Shallow: boolp(true), InitSubmodules: boolp(false)},
				DefaultVersion: strp("1.3.1"),
				Runner:         "scripts/build_zlib.sh",
				Out:            &OutConfig{Include: []string{"lib/*", "include/*"}},
			},
			&Dependency{
				Key:    "libpng",
				Git:    GitSource{URL: "https://github.com/pnggroup/libpng.git", Shallow: boolp(true), InitSubmodules: boolp(false)},
				Branch: strp("libpng16"),
				Deps:   []string{"zlib"},
				Runner: "scripts/build_libpng.sh",
			},
		),
		ReleasesRoot: "./releases",
		Toolchains: []ToolchainRequirement{
			{Name: "cmake", Command: "cmake", VersionArgs: []string{"--version"}, MinVersion: "3.20"},
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
