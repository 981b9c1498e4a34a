package brew

import (
	"strings"
)

// classifier maps a set of substrings found in brew output to a Reason.
// Entries are checked in order; the first match wins.
type classifier struct {
	reason      Reason
	needles     []string
	profileOnly bool
}

var classifiers = []classifier{
	{reason: ReasonAlreadyPresent, needles: []string{"already tapped", "already exists", appAlreadyThere}},
	{reason: ReasonDeprecated, needles: []string{"deprecated", "has been disabled"}},
	{reason: ReasonNotFound, needles: []string{
		"no formula",
		"no available formula",
		"was not found",
		"no cask with this name exists",
		"no casks found for",
		"is unavailable",
	}},
	{reason: ReasonNeedsAdmin, needles: []string{"permission"}, profileOnly: true},
}

// appAlreadyThere is how brew reports a cask whose app bundle is already in
// the target directory.
const appAlreadyThere = "already an app at"

// AppAlreadyInstalled reports whether a failed cask install left an existing
// app bundle in place.
func AppAlreadyInstalled(output string) bool {
	return strings.Contains(strings.ToLower(output), appAlreadyThere)
}

// maxMessageLen bounds the message carried by ReasonOther.
const maxMessageLen = 200

// Classify maps the combined output of a failed brew command to a Reason.
// The returned message is only meaningful for ReasonOther, where it holds the
// most relevant error line from the output.
func Classify(output string, profileMode bool) (Reason, string) {
	lower := strings.ToLower(output)
	for _, c := range classifiers {
		if c.profileOnly && !profileMode {
			continue
		}
		for _, needle := range c.needles {
			if strings.Contains(lower, needle) {
				return c.reason, ""
			}
		}
	}
	return ReasonOther, ErrorLine(output)
}

// ErrorLine picks the last "Error:" line, falling back to the last non-empty line.
func ErrorLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Error:") {
			return truncate(strings.TrimSpace(strings.TrimPrefix(line, "Error:")), maxMessageLen)
		}
		if last == "" {
			last = line
		}
	}
	return truncate(last, maxMessageLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
