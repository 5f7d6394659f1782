// Package bundle stores named sets of forwards: a destination plus a list of
// remote ports (each with its own local port) to start together, so the
// dashboard or the forward CLI can bring up a whole group of forwards in one
// shot instead of toggling each port by hand.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sshfwd/sshfwd/internal/appconfig"
	"gopkg.in/yaml.v3"
)

// Entry describes one forward within a bundle. LocalPort is the local
// listener port to bind; when zero, Create normalizes it to RemotePort (the
// common "forward as itself" case).
type Entry struct {
	RemotePort uint16 `yaml:"remote_port" json:"remote_port"`
	LocalPort  uint16 `yaml:"local_port,omitempty" json:"local_port,omitempty"`
}

// Definition is a named group of forwards against a single destination.
type Definition struct {
	Name        string  `yaml:"name" json:"name"`
	Destination string  `yaml:"destination" json:"destination"`
	Entries     []Entry `yaml:"entries" json:"entries"`
}

type fileModel struct {
	Bundles map[string]Definition `yaml:"bundles"`
}

func filePath() (string, error) {
	dir, err := appconfig.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bundles.yaml"), nil
}

// LoadAll returns all bundles sorted by name.
func LoadAll() ([]Definition, error) {
	fm, err := loadFile()
	if err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(fm.Bundles))
	for _, b := range fm.Bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get fetches one bundle by name.
func Get(name string) (Definition, error) {
	fm, err := loadFile()
	if err != nil {
		return Definition{}, err
	}
	b, ok := fm.Bundles[name]
	if !ok {
		return Definition{}, fmt.Errorf("bundle not found: %s", name)
	}
	return b, nil
}

// Create adds or replaces a bundle definition. An Entry with LocalPort == 0
// is normalized to forward at the remote port's own number.
func Create(name, destination string, entries []Entry) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("bundle name cannot be empty")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return fmt.Errorf("bundle destination cannot be empty")
	}
	if len(entries) == 0 {
		return fmt.Errorf("bundle must include at least one forward")
	}
	for i := range entries {
		if entries[i].RemotePort == 0 {
			return fmt.Errorf("bundle entry %d missing remote port", i)
		}
		if entries[i].LocalPort == 0 {
			entries[i].LocalPort = entries[i].RemotePort
		}
	}

	fm, err := loadFile()
	if err != nil {
		return err
	}
	fm.Bundles[name] = Definition{Name: name, Destination: destination, Entries: entries}
	return saveFile(fm)
}

// Delete removes a bundle by name.
func Delete(name string) error {
	fm, err := loadFile()
	if err != nil {
		return err
	}
	if _, ok := fm.Bundles[name]; !ok {
		return fmt.Errorf("bundle not found: %s", name)
	}
	delete(fm.Bundles, name)
	return saveFile(fm)
}

func loadFile() (fileModel, error) {
	path, err := filePath()
	if err != nil {
		return fileModel{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileModel{Bundles: map[string]Definition{}}, nil
		}
		return fileModel{}, err
	}
	var fm fileModel
	if err := yaml.Unmarshal(b, &fm); err != nil {
		return fileModel{}, fmt.Errorf("parse bundles: %w", err)
	}
	if fm.Bundles == nil {
		fm.Bundles = map[string]Definition{}
	}
	return fm, nil
}

func saveFile(fm fileModel) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(fm)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
