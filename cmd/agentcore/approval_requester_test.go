package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloop/agentcore/pkg/approval"
)

func TestStdinRequesterAcceptsYAndYes(t *testing.T) {
	for _, answer := range []string{"y\n", "yes\n", "Y\n", " YES \n"} {
		var out bytes.Buffer
		r := newStdinRequester(bufio.NewReader(strings.NewReader(answer)), bufio.NewWriter(&out))

		approved, err := r.RequestApproval(context.Background(), approval.Request{Tool: "write_file", Operation: approval.OpMutating})
		require.NoError(t, err)
		assert.True(t, approved, "answer %q should approve", answer)
		assert.Contains(t, out.String(), `call to "write_file"`)
	}
}

func TestStdinRequesterRejectsAnythingElse(t *testing.T) {
	for _, answer := range []string{"n\n", "no\n", "\n", "maybe\n"} {
		var out bytes.Buffer
		r := newStdinRequester(bufio.NewReader(strings.NewReader(answer)), bufio.NewWriter(&out))

		approved, err := r.RequestApproval(context.Background(), approval.Request{Tool: "delete_file", Operation: approval.OpMutating})
		require.NoError(t, err)
		assert.False(t, approved, "answer %q should not approve", answer)
	}
}

func TestStdinRequesterPropagatesReadError(t *testing.T) {
	var out bytes.Buffer
	r := newStdinRequester(bufio.NewReader(strings.NewReader("")), bufio.NewWriter(&out))

	_, err := r.RequestApproval(context.Background(), approval.Request{Tool: "x", Operation: approval.OpReadOnly})
	assert.Error(t, err)
}
