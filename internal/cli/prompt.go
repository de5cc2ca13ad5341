package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/JonMunkholm/dataporter/internal/core"
)

// zeroRecordPolicy maps --on-empty to a callback. "prompt" asks on out and
// reads a yes/no answer from in; anything other than yes skips the table.
func zeroRecordPolicy(policy string, in io.Reader, out io.Writer) (core.ZeroRecordFunc, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", "export":
		return nil, nil
	case "skip":
		return func(context.Context, string) bool { return false }, nil
	case "prompt":
		return newPrompter(in, out).confirm, nil
	}
	return nil, &core.ValidationError{Message: fmt.Sprintf("--on-empty must be export, skip, or prompt, got %q", policy)}
}

// prompter asks one question at a time on a shared reader.
type prompter struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

func (p *prompter) confirm(ctx context.Context, table string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}

	fmt.Fprintf(p.out, "%s has no records. Export an empty file anyway? [y/N] ", table)
	if !p.scanner.Scan() {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "y", "yes":
		return true
	}
	return false
}
