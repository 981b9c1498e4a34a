package apps

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCaskrooms are the Caskroom directories of the standard prefixes.
var DefaultCaskrooms = []string{"/opt/homebrew/Caskroom", "/usr/local/Caskroom"}

// CollectOptions controls what Collect scans.
type CollectOptions struct {
	Dirs []Dir
	// MasPath is the mas binary, "mas" when empty.
	MasPath string
	// Casks are the installed cask tokens.
	Casks []string
	// Caskrooms are checked for a directory named after the app's token.
	Caskrooms []string
	Log       zerolog.Logger
}

// Collect scans the application directories, asks mas for the App Store
// purchases and works out each app's install method. A missing mas is not an
// error: store apps are then recognised by their receipts only.
func Collect(ctx context.Context, opts CollectOptions) (*Inventory, error) {
	masPath := opts.MasPath
	if masPath == "" {
		masPath = "mas"
	}

	found, err := Scan(opts.Dirs)
	if err != nil {
		return nil, err
	}

	inv := &Inventory{
		CreatedAt: time.Now().UTC(),
		Apps:      found,
		Casks:     append([]string(nil), opts.Casks...),
	}
	sort.Strings(inv.Casks)

	listed, err := ListStore(ctx, masPath)
	if err != nil {
		opts.Log.Warn().Err(err).Msg("App Store apps listed from receipts only")
	} else {
		inv.MasListed = true
	}
	inv.StoreApps = storeApps(listed, found)

	storeNames := make(map[string]bool)
	storeIDs := make(map[string]bool)
	for _, s := range inv.StoreApps {
		storeNames[s.Name] = true
		if s.BundleID != "" {
			storeIDs[s.BundleID] = true
		}
	}
	casks := make(map[string]bool)
	for _, c := range opts.Casks {
		casks[c] = true
	}

	for i := range inv.Apps {
		a := &inv.Apps[i]
		switch {
		case a.Source == SourceSystem || a.Source == SourceUtilities:
			a.Method = MethodSystem
		case storeIDs[a.BundleID] || storeNames[a.Name] || hasStoreReceipt(a.Path):
			a.Method = MethodStore
		case casks[CaskToken(a.Name)] || inCaskroom(opts.Caskrooms, CaskToken(a.Name)):
			a.Method = MethodCask
		case a.Source == SourceApplications || a.Source == SourceUser:
			a.Method = MethodDirect
		default:
			a.Method = MethodUnknown
		}
	}

	opts.Log.Info().
		Int("apps", len(inv.Apps)).
		Int("store", len(inv.StoreApps)).
		Bool("mas", inv.MasListed).
		Msg("Applications scanned")
	return inv, nil
}

// storeApps merges the `mas list` rows with the scanned bundles that carry an
// App Store receipt. mas rows gain the bundle id of the app with the same
// name; receipt-only apps have no id and cannot be installed by mas.
func storeApps(listed []StoreApp, found []App) []StoreApp {
	byName := make(map[string]App, len(found))
	for _, a := range found {
		byName[a.Name] = a
	}

	var out []StoreApp
	seen := make(map[string]bool)
	for _, s := range listed {
		if a, ok := byName[s.Name]; ok {
			s.BundleID = a.BundleID
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	for _, a := range found {
		if seen[a.Name] || a.Source == SourceSystem || a.Source == SourceUtilities || !hasStoreReceipt(a.Path) {
			continue
		}
		seen[a.Name] = true
		out = append(out, StoreApp{BundleID: a.BundleID, Name: a.Name, Version: a.Version})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// CaskToken turns an application name into the cask token Homebrew would
// most likely use for it: "Visual Studio Code" becomes "visual-studio-code".
// An app counts as a cask only on an exact token match; names that merely
// contain a token are not matched, so some cask apps are reported as direct
// downloads.
func CaskToken(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

func inCaskroom(caskrooms []string, token string) bool {
	if token == "" {
		return false
	}
	for _, root := range caskrooms {
		if info, err := os.Stat(filepath.Join(root, token)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}
