package approval

import "context"

// Requester asks an external collaborator (the UI adapter, C10) whether a
// single operation should proceed. It is the only suspension point in
// the approval flow; everything else here is pure policy evaluation.
type Requester interface {
	RequestApproval(ctx context.Context, req Request) (bool, error)
}

// Channel is the C9 External Interface the Agent Loop consults at S4c.
// It combines the tiered Mode policy from Check with the batch
// approve_all/deny_all state the spec requires to persist across the
// remaining tool_use blocks in one batch (spec.md §4.6 S4c).
type Channel struct {
	mode       Mode
	policyCtx  Context
	requester  Requester
	approveAll bool
	denyAll    bool
}

// NewChannel builds an approval channel for one agent-loop batch. A
// fresh Channel should be constructed per S4 tool-use batch so
// approve_all/deny_all never leaks across unrelated batches.
func NewChannel(mode Mode, policyCtx Context, requester Requester) *Channel {
	return &Channel{mode: mode, policyCtx: policyCtx, requester: requester}
}

// Evaluate decides whether req may proceed. It first applies the tiered
// Mode policy (Check); on DecisionPrompt it honors a standing
// approve_all/deny_all from earlier in the batch, or else suspends on
// the Requester and records the user's explicit choice only if they
// asked to apply it to the rest of the batch.
func (c *Channel) Evaluate(ctx context.Context, req Request, applyToRestOfBatch bool) (Result, error) {
	policy := Check(c.mode, req, c.policyCtx)
	if policy.Decision != DecisionPrompt {
		return policy, nil
	}

	if c.approveAll {
		return Result{Decision: DecisionAllow, Reason: "approve_all in effect for this batch", Request: req}, nil
	}
	if c.denyAll {
		return Result{Decision: DecisionDeny, Reason: "deny_all in effect for this batch", Request: req}, nil
	}

	approved, err := c.requester.RequestApproval(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if applyToRestOfBatch {
		if approved {
			c.approveAll = true
		} else {
			c.denyAll = true
		}
	}

	if approved {
		return Result{Decision: DecisionAllow, Reason: "approved by requester", Request: req}, nil
	}
	return Result{Decision: DecisionDeny, Reason: "denied by requester", Request: req}, nil
}
