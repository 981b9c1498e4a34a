package brew

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// searchTimeout bounds a single `brew search`.
const searchTimeout = 60 * time.Second

// suggestionPatterns extract a replacement name that brew sometimes embeds in
// its error output.
var suggestionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)did you mean\s+"?([A-Za-z0-9@+._/-]+)"?`),
	regexp.MustCompile(`(?i)(?:was|has been) renamed to\s+"?([A-Za-z0-9@+._/-]+)"?`),
	regexp.MustCompile(`(?i)replaced by\s+"?([A-Za-z0-9@+._/-]+)"?`),
	regexp.MustCompile(`(?i)similar names?:\s*"?([A-Za-z0-9@+._/-]+)"?`),
}

// SuggestionFromOutput returns a replacement name embedded in brew output, or "".
func SuggestionFromOutput(output string) string {
	for _, re := range suggestionPatterns {
		m := re.FindStringSubmatch(output)
		if len(m) < 2 {
			continue
		}
		name := strings.TrimRight(m[1], ".?!,")
		if name != "" && !strings.EqualFold(name, "one") {
			return name
		}
	}
	return ""
}

// Search runs `brew search` for name scoped to kind and returns the candidates
// in the order brew prints them.
func Search(ctx context.Context, runner Executor, kind Kind, name string) []string {
	res := runner.Run(ctx, Command{
		Args:    SearchArgs(kind, name),
		Item:    name,
		Timeout: searchTimeout,
	})
	if !res.OK() {
		return nil
	}
	return ParseSearch(res.Output, kind)
}

// ParseSearch extracts candidate names from `brew search` output. When brew
// prints section headers ("==> Formulae", "==> Casks") only the section that
// matches kind is used.
func ParseSearch(output string, kind Kind) []string {
	want := "==> formulae"
	if kind == KindCask {
		want = "==> casks"
	}

	hasHeaders := strings.Contains(output, "==>")
	inSection := !hasHeaders

	var names []string
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "==>") {
			inSection = strings.EqualFold(line, want)
			continue
		}
		if !inSection {
			continue
		}
		// installed entries carry a check mark; hints are full sentences
		line = strings.TrimSpace(strings.TrimSuffix(line, "✔"))
		if line == "" || strings.Contains(line, " ") {
			continue
		}
		names = append(names, line)
	}
	return names
}
