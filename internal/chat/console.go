package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

const separator = "-----------------------------------------------------------------"

// ConsoleOptions configures the line-oriented front-end.
type ConsoleOptions struct {
	PreviewChars int
	// Banner is printed under the greeting, typically the corpus overview.
	Banner string
	Logger *slog.Logger
}

// Console reads questions line by line and prints the retrieved context and
// the answer for each.
type Console struct {
	session *Session
	in      io.Reader
	out     io.Writer
	opts    ConsoleOptions

	label *color.Color
	faint *color.Color
}

func NewConsole(session *Session, in io.Reader, out io.Writer, opts ConsoleOptions) *Console {
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = 100
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Console{
		session: session,
		in:      in,
		out:     out,
		opts:    opts,
		label:   color.New(color.FgGreen, color.Bold),
		faint:   color.New(color.FgHiBlack),
	}
}

// Run loops until the input ends, the user types exit or quit, or ctx is
// cancelled. Cancellation never interrupts a running turn: steps run with a
// context detached from ctx and the loop stops once the answer is shown.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "Chatbot ready! Type your questions. Type 'exit' or press Ctrl+C to exit.")
	if c.opts.Banner != "" {
		c.faint.Fprintln(c.out, c.opts.Banner)
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	work := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			c.session.RequestExit()
		}
		if c.session.State() == Terminated {
			break
		}
		fmt.Fprintln(c.out, separator)
		fmt.Fprint(c.out, "You: ")

		var line string
		select {
		case <-ctx.Done():
			c.session.RequestExit()
			fmt.Fprintln(c.out)
			return c.goodbye()
		case err := <-readErr:
			c.session.RequestExit()
			fmt.Fprintln(c.out)
			if err != nil {
				return err
			}
			return c.goodbye()
		case line = <-lines:
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			continue
		case "exit", "quit":
			c.session.RequestExit()
			return c.goodbye()
		}
		_ = c.turn(work, line)
	}
	return c.goodbye()
}

// Once answers a single query outside the loop and returns its error.
func (c *Console) Once(ctx context.Context, query string) error {
	return c.turn(ctx, query)
}

func (c *Console) turn(ctx context.Context, query string) error {
	if err := c.session.Begin(query); err != nil {
		c.report(err)
		return err
	}
	results, err := c.session.Retrieve(ctx)
	if err != nil {
		c.report(err)
		return err
	}
	c.printRetrieved(results)
	answer, err := c.session.Generate(ctx)
	if err != nil {
		c.report(err)
		return err
	}
	c.printAnswer(answer)
	if err := c.session.Displayed(); err != nil {
		c.opts.Logger.Error("display", "error", err)
		return err
	}
	return nil
}

func (c *Console) printRetrieved(results []domain.RetrievalResult) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "Retrieved Document Index: none (empty corpus)")
		return
	}
	top := results[0].Document
	fmt.Fprintf(c.out, "Retrieved Document Index: %d\n", top.Position)
	fmt.Fprintf(c.out, "Document Preview: %s...\n", Preview(top.Text, c.opts.PreviewChars))
}

func (c *Console) printAnswer(a *service.Answer) {
	c.label.Fprint(c.out, "[FINAL CHATBOT ANSWER]:")
	fmt.Fprintf(c.out, " %s\n", a.Text)
}

func (c *Console) report(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrProviderUnavailable):
		msg = "model backend unavailable: " + msg
	case errors.Is(err, domain.ErrGenerationFailed):
		msg = "could not generate an answer: " + msg
	}
	color.New(color.FgRed).Fprintf(c.out, "Error: %s\n", msg)
}

func (c *Console) goodbye() error {
	fmt.Fprintln(c.out, "Exiting chatbot. Goodbye!")
	return nil
}

// Preview returns at most n runes of text.
func Preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
