package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// RenamesFile is the name of the known-renames file inside the config dir.
const RenamesFile = "renames"

// Renames holds package renames the operator already knows about, e.g.
// "exa=eza". They seed the ledger so those items install under the new name
// without prompting.
type Renames struct {
	Names map[string]string
}

// LoadRenames reads {dir}/renames and returns the parsed mappings. If the
// file does not exist an empty set is returned without an error. Malformed
// lines are skipped.
func LoadRenames(dir string) (*Renames, error) {
	r := &Renames{
		Names: make(map[string]string),
	}

	path := filepath.Join(dir, RenamesFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return r, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		from := strings.TrimSpace(line[:idx])
		to := strings.TrimSpace(line[idx+1:])

		if from == "" || to == "" || from == to {
			continue
		}

		r.Names[from] = to
	}

	if err := scanner.Err(); err != nil {
		return r, err
	}

	return r, nil
}
