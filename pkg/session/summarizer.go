package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/driftloop/agentcore/pkg/cost"
	"github.com/driftloop/agentcore/pkg/model"
)

// SummaryResult is the outcome of one Summarizer.Summarize call.
type SummaryResult struct {
	Summary            string
	TotalMessages       int
	MessagesSummarized int
	Skipped            bool
	Error              string
}

// SummarizeRequest carries everything a Summarizer needs: the full
// message list, the summary already on file, the high-water mark it
// covers, a force flag that ignores the high-water mark, and the cost
// bucket the call should bill to.
type SummarizeRequest struct {
	Messages        []model.Message
	ExistingSummary string
	StartIndex      int
	Force           bool
	Accum           *cost.Accumulator
}

// Summarizer produces an incremental conversation summary.
type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (SummaryResult, error)
}

const summarizerSystemPrompt = `You maintain a running summary of a conversation for later context ` +
	`injection. Given the existing summary (if any) and the new messages since it was last updated, ` +
	`produce one updated summary covering everything: prior content plus what's new. Be concise. ` +
	`Do not repeat the existing summary verbatim before extending it — integrate it.`

// LLMSummarizer calls modelID to produce an updated summary, billing
// the call to the request's Accumulator via summarization_cost.
type LLMSummarizer struct {
	client   model.Client
	modelID  string
	costCalc cost.CostCalculator
	log      zerolog.Logger
}

// NewLLMSummarizer builds an LLM-backed Summarizer.
func NewLLMSummarizer(client model.Client, modelID string, costCalc cost.CostCalculator, log zerolog.Logger) *LLMSummarizer {
	return &LLMSummarizer{client: client, modelID: modelID, costCalc: costCalc, log: log}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, req SummarizeRequest) (SummaryResult, error) {
	total := len(req.Messages)
	if total == 0 {
		return SummaryResult{Skipped: true}, nil
	}

	start := req.StartIndex
	if req.Force {
		start = 0
	}
	if start < 0 {
		start = 0
	}
	if !req.Force && start >= total {
		return SummaryResult{TotalMessages: total, MessagesSummarized: start, Skipped: true}, nil
	}

	fresh := req.Messages[start:]

	prompt := fmt.Sprintf("Existing summary:\n%s\n\nNew messages:\n%s",
		nonEmptyOr(req.ExistingSummary, "(none yet)"), renderMessages(fresh))

	resp, err := s.client.Complete(ctx, model.CompletionRequest{
		Model:       s.modelID,
		System:      summarizerSystemPrompt,
		Messages:    []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text(prompt)}}},
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		return SummaryResult{}, fmt.Errorf("session: summarizer call failed: %w", err)
	}

	if s.costCalc != nil && req.Accum != nil {
		if dollars, err := s.costCalc.CalculateCost(s.modelID, resp.Usage.InputTokens, resp.Usage.OutputTokens); err == nil {
			req.Accum.AddSummarizationCost(dollars)
		} else {
			s.log.Debug().Err(err).Str("model", s.modelID).Msg("summarization cost calculation skipped")
		}
	}

	var summary strings.Builder
	for _, block := range resp.Message.Content {
		if block.Kind == model.BlockText {
			summary.WriteString(block.Text)
		}
	}

	return SummaryResult{
		Summary:            summary.String(),
		TotalMessages:       total,
		MessagesSummarized: total,
	}, nil
}

func nonEmptyOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func renderMessages(messages []model.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		for _, block := range m.Content {
			if block.Kind == model.BlockText {
				b.WriteString(block.Text)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
