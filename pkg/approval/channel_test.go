package approval

import (
	"context"
	"testing"
)

type fakeRequester struct {
	approve bool
	calls   int
}

func (f *fakeRequester) RequestApproval(ctx context.Context, req Request) (bool, error) {
	f.calls++
	return f.approve, nil
}

func TestChannelEvaluatePolicyAllowSkipsRequester(t *testing.T) {
	req := &fakeRequester{approve: false}
	ch := NewChannel(ModeYolo, Context{}, req)

	result, err := ch.Evaluate(context.Background(), Request{Tool: "x", Operation: OpMutating}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("Decision = %v, want Allow", result.Decision)
	}
	if req.calls != 0 {
		t.Errorf("requester should not be consulted when policy already decides, got %d calls", req.calls)
	}
}

func TestChannelEvaluatePromptsRequesterOnce(t *testing.T) {
	req := &fakeRequester{approve: true}
	ch := NewChannel(ModeAsk, Context{}, req)

	result, err := ch.Evaluate(context.Background(), Request{Tool: "write_file", Operation: OpMutating}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("Decision = %v, want Allow", result.Decision)
	}
	if req.calls != 1 {
		t.Errorf("expected exactly one requester call, got %d", req.calls)
	}
}

func TestChannelApproveAllAppliesToRestOfBatch(t *testing.T) {
	req := &fakeRequester{approve: true}
	ch := NewChannel(ModeAsk, Context{}, req)

	first, err := ch.Evaluate(context.Background(), Request{Tool: "write_file", Operation: OpMutating}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Decision != DecisionAllow {
		t.Fatalf("first Decision = %v, want Allow", first.Decision)
	}

	second, err := ch.Evaluate(context.Background(), Request{Tool: "delete_file", Operation: OpMutating}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Decision != DecisionAllow {
		t.Errorf("second Decision = %v, want Allow via approve_all", second.Decision)
	}
	if req.calls != 1 {
		t.Errorf("expected requester consulted only once, approve_all should cover the second call, got %d calls", req.calls)
	}
}

func TestChannelDenyAllAppliesToRestOfBatch(t *testing.T) {
	req := &fakeRequester{approve: false}
	ch := NewChannel(ModeAsk, Context{}, req)

	first, _ := ch.Evaluate(context.Background(), Request{Tool: "write_file", Operation: OpMutating}, true)
	if first.Decision != DecisionDeny {
		t.Fatalf("first Decision = %v, want Deny", first.Decision)
	}

	second, _ := ch.Evaluate(context.Background(), Request{Tool: "delete_file", Operation: OpMutating}, false)
	if second.Decision != DecisionDeny {
		t.Errorf("second Decision = %v, want Deny via deny_all", second.Decision)
	}
	if req.calls != 1 {
		t.Errorf("expected requester consulted only once, deny_all should cover the second call, got %d calls", req.calls)
	}
}
