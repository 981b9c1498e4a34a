package installer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/prompt"
)

// Disposition is the operator's answer to a suggested replacement name.
type Disposition int

const (
	// NoAlternative means no usable suggestion was found; nothing was asked.
	NoAlternative Disposition = iota
	Accept
	Decline
	// Skip declines and marks the item as skipped by the operator.
	Skip
)

func (d Disposition) String() string {
	switch d {
	case Accept:
		return "accept"
	case Decline:
		return "decline"
	case Skip:
		return "skip"
	default:
		return "no alternative"
	}
}

// Resolution is what the Resolver decided for a missing item.
type Resolution struct {
	Disposition Disposition
	// Name is the suggested replacement; set whenever one was offered.
	Name string
}

var resolveChoices = []prompt.Choice{
	{Key: "accept", Label: "yes"},
	{Key: "decline", Label: "no"},
	{Key: "skip", Label: "skip"},
}

// Resolver looks for a replacement name for items brew could not find and
// asks the operator whether to use it.
type Resolver struct {
	runner brew.Executor
	port   prompt.Port
	log    zerolog.Logger
}

// NewResolver creates a Resolver that searches through runner and asks through port.
func NewResolver(runner brew.Executor, port prompt.Port, log zerolog.Logger) *Resolver {
	return &Resolver{runner: runner, port: port, log: log}
}

// Resolve offers a replacement for name. failureOutput is the output of the
// failed install, which brew sometimes uses to suggest the new name.
func (r *Resolver) Resolve(ctx context.Context, name string, kind brew.Kind, failureOutput string) Resolution {
	suggestion := brew.SuggestionFromOutput(failureOutput)
	source := "brew output"
	if suggestion == "" {
		source = "brew search"
		if found := brew.Search(ctx, r.runner, kind, name); len(found) > 0 {
			suggestion = found[0]
		}
	}

	if suggestion == "" || suggestion == name {
		r.log.Info().Str("item", name).Str("kind", string(kind)).Msg("No alternative name found")
		return Resolution{Disposition: NoAlternative}
	}

	r.log.Info().Str("item", name).Str("suggestion", suggestion).Str("source", source).Msg("Alternative name found")

	question := fmt.Sprintf("%s %q is not available. Install %q instead?", kind, name, suggestion)
	key, err := r.port.Choose(question, resolveChoices, "decline")
	if err != nil {
		r.log.Warn().Err(err).Str("item", name).Msg("No answer to rename prompt, declining")
		return Resolution{Disposition: Decline, Name: suggestion}
	}

	res := Resolution{Name: suggestion}
	switch key {
	case "accept":
		res.Disposition = Accept
	case "skip":
		res.Disposition = Skip
	default:
		res.Disposition = Decline
	}
	r.log.Info().Str("item", name).Str("suggestion", suggestion).Str("answer", res.Disposition.String()).Msg("Rename prompt answered")
	return res
}
