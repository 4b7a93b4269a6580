package authgate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompter reads a secret from the controlling terminal with echo
// disabled, or a plain line when stdin is not a terminal. An empty line
// dismisses the prompt.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter prompts on stderr and reads stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) Prompt(ctx context.Context, title string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	fmt.Fprintf(p.Out, "%s (empty to cancel): ", title)

	fd := int(p.In.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", false, err
		}
		secret := strings.TrimSpace(string(b))
		return secret, secret != "", nil
	}

	text, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, err
	}
	secret := strings.TrimSpace(text)
	return secret, secret != "", nil
}
