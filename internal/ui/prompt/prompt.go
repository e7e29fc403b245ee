// Package prompt asks the operator yes/no confirmations.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

const approvalHint = "Only 'yes' will be accepted to approve."

// ErrAborted is returned when the operator interrupts the form instead of
// answering. It is never read as a no.
var ErrAborted = errors.New("prompt aborted")

// InvalidAnswerError is returned for anything other than an exact yes or no.
type InvalidAnswerError struct {
	Answer string
}

func (e *InvalidAnswerError) Error() string {
	return fmt.Sprintf("invalid answer %q: only yes/no is valid", e.Answer)
}

// Parse maps an answer to a decision. Only the exact tokens are accepted.
func Parse(answer string) (bool, error) {
	switch answer {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, &InvalidAnswerError{Answer: answer}
	}
}

// Console asks questions on a terminal, or line by line when input is piped.
type Console struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// Option configures a Console.
type Option func(*Console)

// WithIO replaces stdin/stdout and disables the interactive form.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(c *Console) {
		c.in = bufio.NewReader(in)
		c.out = out
		c.interactive = false
	}
}

// NewConsole creates a prompt bound to the process terminal.
func NewConsole(opts ...Option) *Console {
	c := &Console{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		interactive: isInteractiveTTY(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Confirm asks question and reports whether the operator answered yes.
// An explicit no returns false; any other answer is an InvalidAnswerError.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	answer, err := c.ask(ctx, question)
	if err != nil {
		return false, err
	}
	return Parse(answer)
}

func (c *Console) ask(ctx context.Context, question string) (string, error) {
	if c.interactive {
		var answer string
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(question + " (yes/no)").
					Description(approvalHint).
					Value(&answer),
			),
		).RunWithContext(ctx)
		return formAnswer(answer, err)
	}

	fmt.Fprintf(c.out, "%s (yes/no)\n%s\n\nEnter value: ", question, approvalHint)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// formAnswer normalizes the result of an interactive form.
func formAnswer(answer string, err error) (string, error) {
	if errors.Is(err, huh.ErrUserAborted) {
		return "", ErrAborted
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func isInteractiveTTY() bool {
	return (isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())) &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
}
