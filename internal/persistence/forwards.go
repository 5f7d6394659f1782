// Package persistence stores the set of forwards the user has configured
// per destination in $HOME/.sshfwd/forwards.json, so that reconnecting to
// the same destination restores the same local/remote port mappings.
package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sshfwd/sshfwd/internal/model"
)

const forwardsFileName = "forwards.json"

// forwardsFile is the on-disk shape: destination string -> forwards.
type forwardsFile map[string][]model.PersistedForward

// Path returns $HOME/.sshfwd/forwards.json.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".sshfwd", forwardsFileName)
}

// Load returns the forwards remembered for destination, or an empty slice
// if none are recorded or the file is missing/unreadable. Load never
// returns an error: a corrupt or absent forwards file degrades to "nothing
// remembered" rather than blocking startup.
func Load(destination string) []model.PersistedForward {
	file := readFile()
	return file[destination]
}

// Save replaces the forwards remembered for destination. Passing an empty
// slice removes the destination's entry entirely rather than persisting an
// empty list.
func Save(destination string, forwards []model.PersistedForward) error {
	file := readFile()

	if len(forwards) == 0 {
		delete(file, destination)
	} else {
		file[destination] = forwards
	}

	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func readFile() forwardsFile {
	data, err := os.ReadFile(Path())
	if err != nil {
		return forwardsFile{}
	}
	var file forwardsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return forwardsFile{}
	}
	if file == nil {
		file = forwardsFile{}
	}
	return file
}
