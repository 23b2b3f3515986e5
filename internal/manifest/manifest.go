// Package manifest parses the fpm.toml file found at the root of an
// extracted package archive.
package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Filename is the manifest's name inside the archive root.
const Filename = "fpm.toml"

// Dependency is one entry of a [dependencies] table. Registry dependencies
// carry a namespace and optionally an exact version ("v" key).
type Dependency struct {
	Namespace string `toml:"namespace"`
	Version   string `toml:"v"`
}

// Target is a [[test]], [[example]] or [[executable]] block; only its nested
// dependencies table matters here.
type Target struct {
	Name         string                `toml:"name"`
	Dependencies map[string]Dependency `toml:"dependencies"`
}

type Manifest struct {
	Name                string   `toml:"name"`
	Version             string   `toml:"version"`
	License             string   `toml:"license"`
	Description         string   `toml:"description"`
	Homepage            string   `toml:"homepage"`
	Repository          string   `toml:"repository"`
	Copyright           string   `toml:"copyright"`
	RegistryDescription string   `toml:"registry_description"`
	Keywords            []string `toml:"keywords"`
	Categories          []string `toml:"categories"`

	Dependencies map[string]Dependency `toml:"dependencies"`
	Test         []Target              `toml:"test"`
	Example      []Target              `toml:"example"`
	Executable   []Target              `toml:"executable"`
}

// Parse decodes manifest bytes. Unknown keys are ignored; fpm.toml carries
// build configuration this registry does not consume.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses dir/fpm.toml.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, Filename))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// DependencyRef identifies one declared dependency for registry resolution.
type DependencyRef struct {
	Namespace string
	Name      string
	Version   string
}

// DependencyRefs collects every declared dependency: the top-level table
// plus the nested tables of test, example and executable targets. The result
// is de-duplicated and sorted for stable persistence.
func (m *Manifest) DependencyRefs() []DependencyRef {
	seen := map[DependencyRef]struct{}{}

	collect := func(deps map[string]Dependency) {
		for name, info := range deps {
			if info.Namespace == "" {
				// path/git dependencies carry no namespace and are not
				// resolvable against the registry
				continue
			}
			seen[DependencyRef{Namespace: info.Namespace, Name: name, Version: info.Version}] = struct{}{}
		}
	}

	collect(m.Dependencies)
	for _, targets := range [][]Target{m.Test, m.Example, m.Executable} {
		for _, t := range targets {
			collect(t.Dependencies)
		}
	}

	refs := make([]DependencyRef, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Namespace != refs[j].Namespace {
			return refs[i].Namespace < refs[j].Namespace
		}
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Version < refs[j].Version
	})
	return refs
}
