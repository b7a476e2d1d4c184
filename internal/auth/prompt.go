package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ErrEmptyCode is returned when the user supplies no authorization code.
var ErrEmptyCode = errors.New("no authorization code provided")

// CodePrompter obtains the one-time authorization code for authURL.
type CodePrompter interface {
	PromptCode(ctx context.Context, authURL string) (string, error)
}

// PromptFunc adapts a plain function to CodePrompter.
type PromptFunc func(ctx context.Context, authURL string) (string, error)

func (f PromptFunc) PromptCode(ctx context.Context, authURL string) (string, error) {
	return f(ctx, authURL)
}

// ConsolePrompter prints the authorization URL and reads the code from a
// single input line.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewConsolePrompter prompts on stdin/stdout.
func NewConsolePrompter() *ConsolePrompter {
	return &ConsolePrompter{In: os.Stdin, Out: os.Stdout}
}

func (p *ConsolePrompter) PromptCode(ctx context.Context, authURL string) (string, error) {
	if _, err := fmt.Fprintf(p.Out, "Authorize this app by visiting this url: %s\n", authURL); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	if p.interactive() {
		if _, err := fmt.Fprint(p.Out, "Enter the code from that page here: "); err != nil {
			return "", fmt.Errorf("write prompt: %w", err)
		}
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return "", fmt.Errorf("read authorization code: %w", r.err)
		}
		code := normalizeCode(r.line)
		if code == "" {
			return "", ErrEmptyCode
		}
		return code, nil
	}
}

func (p *ConsolePrompter) interactive() bool {
	f, ok := p.In.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeCode accepts either the bare code or the full redirect URL the
// browser landed on, which carries the code as a query parameter.
func normalizeCode(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "://") {
		return input
	}
	u, err := url.Parse(input)
	if err != nil {
		return input
	}
	if code := u.Query().Get("code"); code != "" {
		return code
	}
	return input
}
