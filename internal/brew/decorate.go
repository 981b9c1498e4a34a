package brew

import (
	"strings"

	"github.com/fatih/color"
)

var (
	downloadStyle = color.New(color.FgCyan)
	pourStyle     = color.New(color.FgGreen)
	sectionStyle  = color.New(color.Bold)
	errorStyle    = color.New(color.FgRed)
	warnStyle     = color.New(color.FgYellow)
	plainStyle    = color.New(color.Faint)
)

// decorateLine prefixes and colours a line of brew output for the console.
// Decoration is cosmetic only; classification works on the raw text.
func decorateLine(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return ""
	case strings.HasPrefix(trimmed, "==> Downloading"), strings.HasPrefix(trimmed, "==> Fetching"),
		strings.HasPrefix(trimmed, "#"):
		return downloadStyle.Sprint("    ↓ " + strings.TrimPrefix(trimmed, "==> "))
	case strings.HasPrefix(trimmed, "==> Pouring"), strings.HasPrefix(trimmed, "==> Installing"),
		strings.HasPrefix(trimmed, "Pouring"), strings.HasPrefix(trimmed, "🍺"):
		return pourStyle.Sprint("    ⚙ " + strings.TrimPrefix(trimmed, "==> "))
	case strings.HasPrefix(trimmed, "==>"):
		return sectionStyle.Sprint("    " + trimmed)
	case strings.HasPrefix(trimmed, "Error:"):
		return errorStyle.Sprint("    " + trimmed)
	case strings.HasPrefix(trimmed, "Warning:"):
		return warnStyle.Sprint("    " + trimmed)
	default:
		return plainStyle.Sprint("      " + trimmed)
	}
}
