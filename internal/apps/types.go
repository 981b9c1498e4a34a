// Package apps records the applications installed on a Mac and reinstalls
// the App Store ones through the mas CLI.
package apps

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Source is the directory an application was found in.
type Source string

const (
	SourceApplications Source = "Applications"
	SourceUser         Source = "User Applications"
	SourceSystem       Source = "System"
	SourceUtilities    Source = "Utilities"
)

// Method is how an application got onto the machine.
type Method string

const (
	MethodSystem  Method = "system"
	MethodStore   Method = "mas"
	MethodCask    Method = "cask"
	MethodDirect  Method = "direct"
	MethodUnknown Method = "unknown"
)

// App is one .app bundle.
type App struct {
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	BundleID string `json:"bundleId,omitempty"`
	Path     string `json:"path"`
	Source   Source `json:"source"`
	Method   Method `json:"installMethod"`
}

// StoreApp is an App Store purchase. ID is the numeric App Store id that
// `mas install` takes; it is empty when the app was only recognised by its
// receipt.
type StoreApp struct {
	ID       string `json:"id,omitempty"`
	BundleID string `json:"bundleId,omitempty"`
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
}

// Installable reports whether mas can install the app.
func (s StoreApp) Installable() bool {
	return s.ID != ""
}

// Inventory is everything Collect found.
type Inventory struct {
	CreatedAt time.Time  `json:"createdAt"`
	Apps      []App      `json:"applications"`
	StoreApps []StoreApp `json:"appStoreApps"`
	// Casks are the installed cask tokens the methods were matched against.
	Casks []string `json:"caskApps"`
	// MasListed is false when `mas list` could not be run, so StoreApps
	// only holds receipt matches without ids.
	MasListed bool `json:"masListed"`
}

// ByMethod counts applications per install method.
func (inv *Inventory) ByMethod() map[Method]int {
	counts := make(map[Method]int)
	for _, a := range inv.Apps {
		counts[a.Method]++
	}
	return counts
}

// BySource counts applications per directory.
func (inv *Inventory) BySource() map[Source]int {
	counts := make(map[Source]int)
	for _, a := range inv.Apps {
		counts[a.Source]++
	}
	return counts
}

// Manual returns the applications that have to be downloaded by hand on the
// new machine.
func (inv *Inventory) Manual() []App {
	var out []App
	for _, a := range inv.Apps {
		if a.Method == MethodDirect || a.Method == MethodUnknown {
			out = append(out, a)
		}
	}
	return out
}

// Write stores the inventory as indented JSON.
func (inv *Inventory) Write(path string) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal application inventory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write application inventory: %w", err)
	}
	return nil
}

// Load reads an inventory written by Write.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read application inventory: %w", err)
	}
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse application inventory: %w", err)
	}
	return &inv, nil
}
