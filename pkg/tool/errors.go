package tool

import "github.com/driftloop/agentcore/pkg/agentcore/errs"

// DuplicateProvider reports that a provider name is already registered
// (spec.md §4.2).
func DuplicateProvider(name string) error {
	return errs.New(errs.KindInvariantViolation, "duplicate provider: "+name).WithContext("provider", name)
}

// UnknownTool reports that execute_tool was asked to resolve a tool name
// missing from the routing table (spec.md §4.2).
func UnknownTool(name string) error {
	return errs.New(errs.KindInvariantViolation, "unknown tool: "+name).WithContext("tool", name)
}
