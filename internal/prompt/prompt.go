// Package prompt asks the operator questions on the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ErrNoAnswer is returned when input ends before an answer was read.
var ErrNoAnswer = errors.New("no answer on input")

// Choice is one selectable answer. Key is what Choose returns; the operator
// may type the key, the label, or the label's first letter.
type Choice struct {
	Key   string
	Label string
}

// Port is how the installer asks the operator for decisions. Calls block
// until an answer is given.
type Port interface {
	// Confirm asks a yes/no question. def is used for an empty answer.
	Confirm(question string, def bool) (bool, error)
	// Choose asks the operator to pick one of choices. def is the Key used
	// for an empty answer.
	Choose(question string, choices []Choice, def string) (string, error)
}

// Console is a Port reading answers line by line.
type Console struct {
	in  *bufio.Reader
	out io.Writer
	// AssumeDefault answers every question with its default without reading.
	AssumeDefault bool
}

// NewConsole creates a Console reading from in and writing questions to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Stdio creates a Console on the process's stdin and stdout.
func Stdio() *Console {
	return NewConsole(os.Stdin, os.Stdout)
}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// Confirm implements Port.
func (c *Console) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	if c.AssumeDefault {
		fmt.Fprintf(c.out, "%s %s: %s\n", question, hint, yesNo(def))
		return def, nil
	}

	for {
		fmt.Fprintf(c.out, "%s %s: ", question, hint)
		response, err := c.readLine()
		if err != nil {
			return def, err
		}
		switch strings.ToLower(response) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(c.out, "Please answer y or n.")
	}
}

// Choose implements Port.
func (c *Console) Choose(question string, choices []Choice, def string) (string, error) {
	labels := make([]string, len(choices))
	for i, ch := range choices {
		label := ch.Label
		if ch.Key == def {
			label = strings.ToUpper(label[:1]) + label[1:]
		}
		labels[i] = label
	}
	hint := "[" + strings.Join(labels, "/") + "]"

	if c.AssumeDefault {
		fmt.Fprintf(c.out, "%s %s: %s\n", question, hint, def)
		return def, nil
	}

	for {
		fmt.Fprintf(c.out, "%s %s: ", question, hint)
		response, err := c.readLine()
		if err != nil {
			return def, err
		}
		if response == "" {
			return def, nil
		}
		if key, ok := match(response, choices); ok {
			return key, nil
		}
		fmt.Fprintf(c.out, "Please answer one of: %s\n", strings.Join(labels, ", "))
	}
}

func (c *Console) readLine() (string, error) {
	response, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(response) != "" {
			return strings.TrimSpace(response), nil
		}
		fmt.Fprintln(c.out)
		if errors.Is(err, io.EOF) {
			return "", ErrNoAnswer
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(response), nil
}

func match(response string, choices []Choice) (string, bool) {
	r := strings.ToLower(response)
	for _, ch := range choices {
		if r == strings.ToLower(ch.Key) || r == strings.ToLower(ch.Label) {
			return ch.Key, true
		}
	}
	for _, ch := range choices {
		if ch.Label != "" && r == strings.ToLower(ch.Label[:1]) {
			return ch.Key, true
		}
	}
	return "", false
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
