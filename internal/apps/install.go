package apps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/macsnap/internal/brew"
)

// ErrMasMissing is returned when the mas CLI cannot be run.
var ErrMasMissing = errors.New("mas is not installed")

// DefaultTimeout bounds one `mas install`; App Store downloads can be large.
const DefaultTimeout = 30 * time.Minute

// Failure is a store app mas could not install.
type Failure struct {
	App     StoreApp
	Message string
}

// Report is the outcome of Install.
type Report struct {
	Installed []StoreApp
	Failed    []Failure
	// NoID are receipt-only store apps that must be installed from the App Store.
	NoID []StoreApp
	// Manual are apps that were neither App Store nor cask installs.
	Manual []App
}

// Installer reinstalls App Store apps with mas. Runner executes the mas
// binary the same way brew commands are run.
type Installer struct {
	Runner  brew.Executor
	Timeout time.Duration
	// Started, when set, is called before each app is installed.
	Started func(app StoreApp)
	Log     zerolog.Logger
}

// Check verifies that mas runs.
func (in *Installer) Check(ctx context.Context) error {
	res := in.Runner.Run(ctx, brew.Command{Args: []string{"version"}, Item: "mas", Timeout: 30 * time.Second})
	if !res.OK() {
		return fmt.Errorf("%w: %s", ErrMasMissing, res.Message)
	}
	return nil
}

// Install runs `mas install <id>` for every store app with an id. Failures
// are collected, not returned; an interrupt stops the loop and is returned.
func (in *Installer) Install(ctx context.Context, inv *Inventory) (*Report, error) {
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rep := &Report{Manual: inv.Manual()}
	for _, app := range inv.StoreApps {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("app install interrupted: %w", err)
		}
		if !app.Installable() {
			rep.NoID = append(rep.NoID, app)
			continue
		}
		if in.Started != nil {
			in.Started(app)
		}

		res := in.Runner.Run(ctx, brew.Command{
			Args:    []string{"install", app.ID},
			Item:    app.Name,
			Timeout: timeout,
		})
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("app install interrupted: %w", err)
		}
		if res.OK() {
			rep.Installed = append(rep.Installed, app)
			in.Log.Info().Str("app", app.Name).Str("id", app.ID).Dur("duration", res.Duration).Msg("App installed")
			continue
		}
		msg := res.Message
		if msg == "" {
			msg = brew.ErrorLine(res.Output)
		}
		rep.Failed = append(rep.Failed, Failure{App: app, Message: msg})
		in.Log.Warn().Str("app", app.Name).Str("id", app.ID).Str("message", msg).Msg("App install failed")
	}
	return rep, nil
}
