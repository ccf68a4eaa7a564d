package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/driftloop/agentcore/pkg/approval"
)

// stdinRequester asks the operator at the terminal whether a prompted
// tool call should proceed, the simplest possible C10 adapter for a
// non-interactive-UI entrypoint. A TUI or web socket adapter would
// implement the same approval.Requester interface instead of this one.
type stdinRequester struct {
	in  *bufio.Reader
	out *bufio.Writer
}

func newStdinRequester(in *bufio.Reader, out *bufio.Writer) *stdinRequester {
	return &stdinRequester{in: in, out: out}
}

func (r *stdinRequester) RequestApproval(ctx context.Context, req approval.Request) (bool, error) {
	fmt.Fprintf(r.out, "\napprove %s call to %q? [y/N] ", req.Operation, req.Tool)
	r.out.Flush()

	line, err := r.in.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("stdinRequester: read approval: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
