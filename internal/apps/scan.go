package apps

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"howett.net/plist"
)

// Dir is an application directory and the source its bundles are filed under.
type Dir struct {
	Path   string
	Source Source
}

// DefaultDirs are the directories macOS installs applications into.
func DefaultDirs(home string) []Dir {
	return []Dir{
		{Path: "/Applications", Source: SourceApplications},
		{Path: filepath.Join(home, "Applications"), Source: SourceUser},
		{Path: "/System/Applications", Source: SourceSystem},
		{Path: "/System/Applications/Utilities", Source: SourceUtilities},
	}
}

// bundleInfo holds the Info.plist keys we read. plist decodes both the XML
// and the binary encoding.
type bundleInfo struct {
	Name         string `plist:"CFBundleName"`
	DisplayName  string `plist:"CFBundleDisplayName"`
	ShortVersion string `plist:"CFBundleShortVersionString"`
	Version      string `plist:"CFBundleVersion"`
	Identifier   string `plist:"CFBundleIdentifier"`
}

// Scan lists the .app bundles directly inside each directory. Missing
// directories are skipped. Bundles are deduplicated by bundle id, or by name
// when they have none, keeping the first; the result is sorted by name.
func Scan(dirs []Dir) ([]App, error) {
	var found []App
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", dir.Path, err)
		}
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".app") {
				continue
			}
			found = append(found, readApp(filepath.Join(dir.Path, e.Name()), dir.Source))
		}
	}

	seen := make(map[string]bool)
	apps := found[:0]
	for _, a := range found {
		key := a.BundleID
		if key == "" {
			key = a.Name
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		apps = append(apps, a)
	}
	sort.SliceStable(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].Name) < strings.ToLower(apps[j].Name)
	})
	return apps, nil
}

// readApp builds an App from the bundle's Info.plist, falling back to the
// bundle's file name when the plist is missing or unreadable.
func readApp(path string, source Source) App {
	app := App{
		Name:   strings.TrimSuffix(filepath.Base(path), ".app"),
		Path:   path,
		Source: source,
	}
	data, err := os.ReadFile(filepath.Join(path, "Contents", "Info.plist"))
	if err != nil {
		return app
	}
	var info bundleInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return app
	}

	switch {
	case info.Name != "":
		app.Name = info.Name
	case info.DisplayName != "":
		app.Name = info.DisplayName
	}
	app.Version = info.ShortVersion
	if app.Version == "" {
		app.Version = info.Version
	}
	app.BundleID = info.Identifier
	return app
}

// hasStoreReceipt reports whether the bundle was installed from the App Store.
func hasStoreReceipt(appPath string) bool {
	_, err := os.Stat(filepath.Join(appPath, "Contents", "_MASReceipt", "receipt"))
	return err == nil
}
