package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/ledger"
	"github.com/blackwell-systems/macsnap/internal/output"
	"github.com/blackwell-systems/macsnap/internal/prompt"
	"github.com/blackwell-systems/macsnap/internal/snapshots"
	"github.com/blackwell-systems/macsnap/internal/store"
)

var (
	// ErrCancelled is returned when the operator cancels the run at a pause prompt.
	ErrCancelled = errors.New("install cancelled by operator")
	// ErrBrewMissing is returned when the brew binary cannot be run.
	ErrBrewMissing = errors.New("homebrew is not installed")
	// ErrInterrupted wraps the context error when the run is stopped from
	// outside, e.g. by Ctrl-C. The item in flight stays unsettled.
	ErrInterrupted = errors.New("install interrupted")
)

// versionTimeout bounds `brew --version`.
const versionTimeout = 30 * time.Second

var pauseChoices = []prompt.Choice{
	{Key: "continue", Label: "continue"},
	{Key: "cancel", Label: "cancel"},
}

// Recorder stores install history. Failures to record never stop a run.
type Recorder interface {
	StartRun(run *store.Run) (int64, error)
	InsertAttempt(a *store.Attempt) error
	FinishRun(run *store.Run) error
}

// SaveFunc persists the ledger.
type SaveFunc func(path string, l *ledger.Ledger) error

// Installer replays snapshots through brew.
type Installer struct {
	runner   brew.Executor
	port     prompt.Port
	ledger   *ledger.Ledger
	resolver *Resolver
	opts     Options

	// Toolchain is checked before a fresh run. Defaults to the Xcode CLT.
	Toolchain brew.Toolchain
	// Recorder receives the install history. Optional.
	Recorder Recorder
	// Save persists the ledger. Defaults to ledger.Save.
	Save SaveFunc
	// Console prints operator-facing progress.
	Console *output.Console
	// Log is the run log.
	Log zerolog.Logger
}

// New creates an Installer. l is the ledger to update; load it with OpenLedger.
func New(runner brew.Executor, port prompt.Port, l *ledger.Ledger, opts Options) *Installer {
	if l == nil {
		l = ledger.New()
	}
	if len(opts.Priority) == 0 {
		opts.Priority = snapshots.DefaultPriority
	}
	in := &Installer{
		runner:    runner,
		port:      port,
		ledger:    l,
		opts:      opts,
		Toolchain: brew.XcodeToolchain{},
		Save:      ledger.Save,
		Console:   output.NewConsole(nil),
		Log:       zerolog.Nop(),
	}
	return in
}

// OpenLedger prepares the ledger for a run. It is loaded from disk when
// resuming and empty otherwise. Failing to create the ledger's directory is
// the only error.
func OpenLedger(opts Options) (*ledger.Ledger, error) {
	if opts.ProgressFile == "" {
		return ledger.New(), nil
	}
	if err := ledger.EnsureDir(opts.ProgressFile); err != nil {
		return nil, err
	}
	if opts.Resume {
		return ledger.Load(opts.ProgressFile), nil
	}
	return ledger.New(), nil
}

// Ledger returns the ledger the installer updates.
func (in *Installer) Ledger() *ledger.Ledger {
	return in.ledger
}

// Run installs every item of snap not already settled in the ledger.
// Individual item failures are recorded, never returned. The error is
// ErrCancelled, ErrInterrupted, ErrBrewMissing, or a ledger directory failure.
func (in *Installer) Run(ctx context.Context, snap *snapshots.Snapshot) (*Report, error) {
	if in.resolver == nil {
		in.resolver = NewResolver(in.runner, in.port, in.Log)
	}
	sess := newSession()

	if in.opts.ProgressFile != "" {
		if err := ledger.EnsureDir(in.opts.ProgressFile); err != nil {
			return nil, err
		}
	}

	in.Log.Info().
		Str("source", in.opts.Source).
		Bool("resume", in.opts.Resume).
		Bool("profile", in.opts.UseProfile).
		Int("taps", len(snap.Taps)).
		Int("formulae", len(snap.Formulae)).
		Int("casks", len(snap.Casks)).
		Msg("Install started")

	if err := in.preflight(ctx, sess); err != nil {
		return in.finish(sess, err)
	}

	in.startRecord(sess)
	in.plan(sess, snap)

	var kind brew.Kind
	for ; sess.Index < len(sess.Items); sess.Index++ {
		if err := interrupted(ctx); err != nil {
			return in.finish(sess, err)
		}
		item := sess.Items[sess.Index]
		if item.Kind != kind {
			kind = item.Kind
			in.Console.Section("Installing %s", kind.Plural())
		}

		if err := in.installItem(ctx, sess, item); err != nil {
			return in.finish(sess, err)
		}
	}

	return in.finish(sess, nil)
}

// preflight checks the toolchain on fresh runs, then brew itself.
func (in *Installer) preflight(ctx context.Context, sess *Session) error {
	if !in.opts.Resume && !in.opts.SkipToolchainCheck && in.Toolchain != nil {
		in.checkToolchain(ctx, sess)
	}

	res := in.runner.Run(ctx, brew.Command{Args: []string{"--version"}, Timeout: versionTimeout})
	if err := interrupted(ctx); err != nil {
		return err
	}
	if !res.OK() {
		sess.BrewMissing = true
		in.Log.Error().Str("message", res.Message).Msg("brew --version failed")
		return ErrBrewMissing
	}

	if !in.opts.SkipUpdate {
		in.Console.Info("Updating Homebrew...")
		res := in.runner.Run(ctx, brew.Command{Args: []string{"update"}, Timeout: in.opts.timeout(), Stream: in.opts.Stream})
		if !res.OK() {
			in.Console.Warn("brew update failed (%s); continuing with the current formulae", res.Error())
			in.Log.Warn().Str("reason", string(res.Reason)).Str("message", res.Message).Msg("brew update failed")
		}
	}
	return nil
}

func (in *Installer) checkToolchain(ctx context.Context, sess *Session) {
	if in.Toolchain.Installed(ctx) {
		in.Log.Debug().Msg("Command Line Tools present")
		return
	}

	in.Console.Warn("Xcode Command Line Tools are not installed")
	if err := in.Toolchain.TriggerInstall(ctx); err != nil {
		in.Console.Error("could not start the Command Line Tools installer: %v", err)
		in.Log.Error().Err(err).Msg("xcode-select --install failed")
	} else {
		in.Console.Info("An installer window has opened. Finish it before continuing.")
	}

	ok, err := in.port.Confirm("Have the Command Line Tools finished installing?", true)
	if err != nil || !ok || !in.Toolchain.Installed(ctx) {
		sess.ToolchainMissing = true
		in.Console.Warn("Continuing without the Command Line Tools; some installs are likely to fail")
		in.Log.Warn().Msg("Toolchain missing, continuing degraded")
	}
}

// plan builds the ordered item list, counting items settled by earlier runs
// and skipping casks in profile mode.
func (in *Installer) plan(sess *Session, snap *snapshots.Snapshot) {
	for _, kind := range brew.Kinds {
		for _, item := range snap.Ordered(kind, in.opts.Priority) {
			if kind == brew.KindCask && in.opts.UseProfile {
				sess.record(Outcome{Item: item, Status: Skipped, Reason: brew.ReasonPolicySkipped})
				in.Log.Info().Str("item", item.Name).Msg("Cask skipped in profile mode")
				continue
			}
			resolved := in.ledger.Resolve(item.Name)
			if in.ledger.Done(kind, item.Name) || in.ledger.Done(kind, resolved) {
				sess.previous(kind)
				continue
			}
			sess.Items = append(sess.Items, item)
		}
	}

	if skipped := sess.Counts[brew.KindCask].Skipped; skipped > 0 {
		in.Console.Warn("Skipping %d casks in profile mode (they usually need admin rights)", skipped)
		in.Console.Hint("install them later without --profile")
	}
	if prev := sess.totalPrevious(); prev > 0 {
		in.Console.Info("Resuming: %d items already handled by an earlier run", prev)
	}
}

// installItem runs one item to a settled state.
func (in *Installer) installItem(ctx context.Context, sess *Session, item snapshots.Item) error {
	target := in.ledger.Resolve(item.Name)
	label := item.Name
	if target != item.Name {
		label = fmt.Sprintf("%s → %s", item.Name, target)
	}
	in.Console.Plain("[%d/%d] %s %s", sess.Index+1, len(sess.Items), item.Kind, label)

	res := in.attempt(ctx, sess, item, target)
	if err := interrupted(ctx); err != nil {
		return err
	}
	if succeeded(item.Kind, res) {
		in.complete(sess, item, target, res)
		return nil
	}

	reason, message, took := failureOf(res), res.Message, res.Duration
	if reason != res.Reason {
		message = brew.ErrorLine(res.Output)
	}
	if reason.Resolvable() {
		resolution := in.resolver.Resolve(ctx, target, item.Kind, res.Output)
		if err := interrupted(ctx); err != nil {
			return err
		}
		switch resolution.Disposition {
		case Accept:
			alt := in.attempt(ctx, sess, item, resolution.Name)
			if err := interrupted(ctx); err != nil {
				return err
			}
			if succeeded(item.Kind, alt) {
				in.rename(sess, item, resolution.Name, alt)
				return nil
			}
			reason = failureOf(alt)
			message = fmt.Sprintf("%s also failed: %s", resolution.Name, alt.Error())
			took = alt.Duration
		case Skip:
			reason = brew.ReasonUserSkipped
			message = ""
		}
	}

	in.fail(sess, item, target, reason, message, took)
	return in.pause(sess, item)
}

// interrupted wraps ctx's error once the run has been stopped from outside.
func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return nil
}

// attempt runs the install command for target and records it in the history.
// An attempt cut short by cancellation is not recorded.
func (in *Installer) attempt(ctx context.Context, sess *Session, item snapshots.Item, target string) brew.Result {
	res := in.runner.Run(ctx, brew.Command{
		Args:    brew.InstallArgs(item.Kind, target, in.opts.AppDir),
		Item:    target,
		Timeout: in.opts.timeout(),
		Stream:  in.opts.Stream,
	})
	if ctx.Err() != nil {
		return res
	}

	outcome := Succeeded.String()
	if !succeeded(item.Kind, res) {
		outcome = Failed.String()
	}
	in.recordAttempt(sess, &store.Attempt{
		Kind:     string(item.Kind),
		Name:     item.Name,
		Target:   target,
		Outcome:  outcome,
		Reason:   string(res.Reason),
		Message:  res.Message,
		ExitCode: res.ExitCode,
		Duration: res.Duration,
	})
	return res
}

// succeeded reports whether res left the item installed. "Already present"
// only counts for a tap that is already tapped and for a cask whose app
// bundle is already in place; for formulae it is usually a link conflict.
func succeeded(kind brew.Kind, res brew.Result) bool {
	if res.OK() {
		return true
	}
	if res.Reason != brew.ReasonAlreadyPresent {
		return false
	}
	switch kind {
	case brew.KindTap:
		return true
	case brew.KindCask:
		return brew.AppAlreadyInstalled(res.Output)
	default:
		return false
	}
}

// failureOf is the reason recorded for a result succeeded rejected.
func failureOf(res brew.Result) brew.Reason {
	if res.Reason == brew.ReasonAlreadyPresent {
		return brew.ReasonOther
	}
	return res.Reason
}

func (in *Installer) complete(sess *Session, item snapshots.Item, target string, res brew.Result) {
	in.ledger.MarkCompleted(item.Kind, item.Name)
	in.persist(sess)

	o := Outcome{Item: item, Status: Succeeded, Duration: res.Duration}
	if target != item.Name {
		o.Status = Renamed
		o.RenamedTo = target
	}
	sess.record(o)

	if res.Reason == brew.ReasonAlreadyPresent {
		in.Console.Success("%s already present", target)
	} else {
		in.Console.Success("%s (%s)", target, res.Duration.Round(time.Second))
	}
	in.Log.Info().Str("kind", string(item.Kind)).Str("item", item.Name).Str("target", target).Msg("Item completed")
}

func (in *Installer) rename(sess *Session, item snapshots.Item, replacement string, res brew.Result) {
	in.ledger.MarkCompleted(item.Kind, item.Name)
	in.ledger.RecordRename(item.Name, replacement)
	in.persist(sess)

	sess.record(Outcome{Item: item, Status: Renamed, RenamedTo: replacement, Duration: res.Duration})
	in.Console.Success("%s installed as %s", item.Name, replacement)
	in.Log.Info().Str("kind", string(item.Kind)).Str("item", item.Name).Str("replacement", replacement).Msg("Item renamed")
}

func (in *Installer) fail(sess *Session, item snapshots.Item, target string, reason brew.Reason, message string, d time.Duration) {
	in.ledger.MarkFailed(item.Kind, item.Name, reason, message)
	in.persist(sess)

	sess.record(Outcome{Item: item, Status: Failed, Reason: reason, Message: message, Duration: d})

	detail := string(reason)
	if message != "" {
		detail += ": " + message
	}
	in.Console.Failure("%s %s: %s", item.Kind, target, detail)
	in.Console.Hint(hintFor(item.Kind, target, reason))
	in.Log.Warn().
		Str("kind", string(item.Kind)).
		Str("item", item.Name).
		Str("target", target).
		Str("reason", string(reason)).
		Str("message", message).
		Msg("Item failed")
}

// pause blocks for the operator after a failure when configured to.
func (in *Installer) pause(sess *Session, item snapshots.Item) error {
	if !in.opts.PauseOnError {
		return nil
	}
	question := fmt.Sprintf("%s failed. Continue?", item.Name)
	if left := sess.Remaining() - 1; left > 0 {
		question = fmt.Sprintf("%s failed. Continue with the remaining %d items?", item.Name, left)
	}
	key, err := in.port.Choose(question, pauseChoices, "continue")
	if err != nil {
		in.Log.Warn().Err(err).Msg("No answer to pause prompt, continuing")
		return nil
	}
	if key == "cancel" {
		in.Log.Warn().Str("item", item.Name).Msg("Install cancelled by operator")
		return ErrCancelled
	}
	return nil
}

// persist saves the ledger. A failed save is retried at the next transition.
func (in *Installer) persist(sess *Session) {
	if in.opts.ProgressFile == "" || in.Save == nil {
		return
	}
	if err := in.Save(in.opts.ProgressFile, in.ledger); err != nil {
		sess.SaveFailures++
		in.Console.Warn("Could not save progress: %v (will retry after the next item)", err)
		in.Log.Warn().Err(err).Str("path", in.opts.ProgressFile).Msg("Failed to save progress")
	}
}

func (in *Installer) startRecord(sess *Session) {
	if in.Recorder == nil {
		return
	}
	id, err := in.Recorder.StartRun(&store.Run{
		StartedAt:    sess.Started,
		Source:       in.opts.Source,
		ProgressFile: in.opts.ProgressFile,
		Resumed:      in.opts.Resume,
		Profile:      in.opts.UseProfile,
		Status:       store.RunRunning,
	})
	if err != nil {
		in.Log.Warn().Err(err).Msg("Failed to record run start")
		return
	}
	sess.RunID = id
}

func (in *Installer) recordAttempt(sess *Session, a *store.Attempt) {
	if in.Recorder == nil || sess.RunID == 0 {
		return
	}
	a.RunID = sess.RunID
	if err := in.Recorder.InsertAttempt(a); err != nil {
		in.Log.Warn().Err(err).Str("item", a.Name).Msg("Failed to record attempt")
	}
}

// finish builds the report and closes the history record.
func (in *Installer) finish(sess *Session, runErr error) (*Report, error) {
	if errors.Is(runErr, ErrCancelled) || errors.Is(runErr, ErrInterrupted) {
		sess.Cancelled = true
	}
	rep := sess.Report(in.ledger)

	if in.Recorder != nil && sess.RunID != 0 {
		status := store.RunCompleted
		switch {
		case sess.Cancelled:
			status = store.RunCancelled
		case runErr != nil:
			status = store.RunAborted
		}
		totals := rep.Totals()
		err := in.Recorder.FinishRun(&store.Run{
			ID:        sess.RunID,
			Status:    status,
			Succeeded: totals.Succeeded,
			Failed:    totals.Failed,
			Skipped:   totals.Skipped,
		})
		if err != nil {
			in.Log.Warn().Err(err).Msg("Failed to record run finish")
		}
	}

	totals := rep.Totals()
	in.Log.Info().
		Int("succeeded", totals.Succeeded).
		Int("failed", totals.Failed).
		Int("skipped", totals.Skipped).
		Int("previous", totals.Previous).
		Dur("duration", rep.Duration).
		Bool("cancelled", sess.Cancelled).
		Msg("Install finished")

	return rep, runErr
}

// hintFor suggests what the operator can do about a failed item.
func hintFor(kind brew.Kind, name string, reason brew.Reason) string {
	switch reason {
	case brew.ReasonTimeout:
		return fmt.Sprintf("retry later: brew %s", strings.Join(brew.InstallArgs(kind, name, ""), " "))
	case brew.ReasonNeedsAdmin:
		return "needs admin rights; install it without --profile"
	case brew.ReasonUserSkipped:
		return fmt.Sprintf("install it manually: brew %s", strings.Join(brew.InstallArgs(kind, name, ""), " "))
	default:
		return fmt.Sprintf("look for it manually: brew %s", strings.Join(brew.SearchArgs(kind, name), " "))
	}
}
