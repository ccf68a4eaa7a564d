package model

// Cache-control placement for the request as a whole (spec.md §4.4/§6):
// tools -> system -> messages, one ephemeral breakpoint per stable region.
// Ported from the teacher's pkg/model/prompt_cache.go, adapted from the
// OpenAI-compatible []ContentPart shape to the tagged ContentBlock union.

// ApplyCacheControl returns a copy of req with ephemeral cache-control
// markers applied to: the last tool definition, and the last content
// block of the last user message. It never mutates req or its slices.
// Applying it twice to the same request yields the same API view.
func ApplyCacheControl(req CompletionRequest) CompletionRequest {
	out := req

	if len(req.Tools) > 0 {
		out.Tools = cacheLastTool(req.Tools)
	}

	out.Messages = cacheLastUserMessage(req.Messages)

	return out
}

func cacheLastTool(tools []ToolDefinition) []ToolDefinition {
	cloned := make([]ToolDefinition, len(tools))
	copy(cloned, tools)
	last := len(cloned) - 1
	if cloned[last].CacheControl == nil {
		cloned[last].CacheControl = ephemeralCacheControl
	}
	return cloned
}

func cacheLastUserMessage(messages []Message) []Message {
	lastUser := -1
	for i, m := range messages {
		if m.Role == RoleUser {
			lastUser = i
		}
	}
	if lastUser == -1 || len(messages[lastUser].Content) == 0 {
		return messages
	}

	out := make([]Message, len(messages))
	copy(out, messages)

	blocks := cloneBlocks(out[lastUser].Content)
	last := len(blocks) - 1
	if blocks[last].CacheControl == nil {
		blocks[last] = blocks[last].WithCacheControl()
	}
	out[lastUser].Content = blocks
	return out
}

// CacheSystemPrompt wraps a system prompt string as a single text block
// carrying an ephemeral cache marker, for providers (like Anthropic) that
// accept a structured system parameter rather than a bare string.
func CacheSystemPrompt(system string) []ContentBlock {
	if system == "" {
		return nil
	}
	return []ContentBlock{Text(system).WithCacheControl()}
}

func cloneBlocks(blocks []ContentBlock) []ContentBlock {
	out := make([]ContentBlock, len(blocks))
	copy(out, blocks)
	for i := range out {
		if out[i].CacheControl != nil {
			cc := *out[i].CacheControl
			out[i].CacheControl = &cc
		}
		if out[i].ToolInput != nil {
			in := make(map[string]any, len(out[i].ToolInput))
			for k, v := range out[i].ToolInput {
				in[k] = v
			}
			out[i].ToolInput = in
		}
	}
	return out
}
