package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	infoColor    = color.New(color.FgGreen)
	warnColor    = color.New(color.FgHiMagenta)
	errorColor   = color.New(color.FgRed)
	hintColor    = color.New(color.FgCyan)
	sectionColor = color.New(color.Bold)
	faintColor   = color.New(color.Faint)
)

func init() {
	// fatih/color already checks stdout; honour NO_COLOR and non-TTY the
	// same way the table renderers do.
	if !IsColorEnabled() {
		color.NoColor = true
	}
}

// Console prints operator-facing status lines.
type Console struct {
	w io.Writer
}

// NewConsole creates a Console writing to w. A nil w means stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer {
	return c.w
}

// Section prints a bold heading preceded by a blank line.
func (c *Console) Section(format string, a ...any) {
	fmt.Fprintln(c.w)
	sectionColor.Fprintf(c.w, format+"\n", a...)
}

// Info prints a green status line.
func (c *Console) Info(format string, a ...any) {
	infoColor.Fprintf(c.w, format+"\n", a...)
}

// Success prints a green line with a check mark.
func (c *Console) Success(format string, a ...any) {
	infoColor.Fprintf(c.w, "  ✓ "+format+"\n", a...)
}

// Failure prints a red line with a cross.
func (c *Console) Failure(format string, a ...any) {
	errorColor.Fprintf(c.w, "  ✗ "+format+"\n", a...)
}

// Warn prints a magenta warning line.
func (c *Console) Warn(format string, a ...any) {
	warnColor.Fprintf(c.w, "⚠ "+format+"\n", a...)
}

// Error prints a red error line.
func (c *Console) Error(format string, a ...any) {
	errorColor.Fprintf(c.w, "Error: "+format+"\n", a...)
}

// Hint prints an indented cyan suggestion.
func (c *Console) Hint(format string, a ...any) {
	hintColor.Fprintf(c.w, "    → "+format+"\n", a...)
}

// Plain prints an uncoloured line.
func (c *Console) Plain(format string, a ...any) {
	fmt.Fprintf(c.w, format+"\n", a...)
}

// Faint prints a dimmed line.
func (c *Console) Faint(format string, a ...any) {
	faintColor.Fprintf(c.w, format+"\n", a...)
}
