package statesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/driftloop/agentcore/pkg/cost"
	"github.com/driftloop/agentcore/pkg/model"
)

// Extractor pulls structured signal out of one conversation exchange:
// user profile fields, knowledge-base-worthy facts, and an intent
// classification. Grounded on original_source's StateExtractor, backed
// by a lightweight model for fast, cheap extraction.
type Extractor interface {
	ExtractUserInfo(ctx context.Context, userMsg, assistantMsg string) (map[string]any, error)
	ExtractFacts(ctx context.Context, userMsg, assistantMsg string) ([]string, error)
	ClassifyIntent(ctx context.Context, userMsg string) (IntentClassification, error)
}

// LLMExtractor is an Extractor backed by model.Client, grounded on
// original_source's StateExtractor(client, model="claude-3-haiku-...").
// Each method is independently toggleable, matching the original's
// enable_user_extraction/enable_fact_extraction/enable_intent_extraction
// flags, and each short-circuits on inputs too short to plausibly carry
// the extracted signal before ever calling the model.
type LLMExtractor struct {
	client    model.Client
	modelID   string
	maxTokens int
	costCalc  cost.CostCalculator
	accum     *cost.Accumulator
	log       zerolog.Logger

	EnableUserExtraction   bool
	EnableFactExtraction   bool
	EnableIntentExtraction bool
}

// NewLLMExtractor builds an extractor with all three extraction kinds
// enabled by default. Cost billing is a no-op until SetAccumulator is
// called; a caller without a natural per-session Accumulator at
// construction time (e.g. wiring happens before the Session exists) can
// attach one once it does.
func NewLLMExtractor(client model.Client, modelID string, costCalc cost.CostCalculator, log zerolog.Logger) *LLMExtractor {
	return &LLMExtractor{
		client:                 client,
		modelID:                modelID,
		maxTokens:              500,
		costCalc:               costCalc,
		log:                    log,
		EnableUserExtraction:   true,
		EnableFactExtraction:   true,
		EnableIntentExtraction: true,
	}
}

// SetAccumulator attaches the Accumulator extraction calls bill their
// cost to (spec.md §3's reasoning_cost bucket). Billing is skipped
// until this is called.
func (e *LLMExtractor) SetAccumulator(accum *cost.Accumulator) {
	e.accum = accum
}

func (e *LLMExtractor) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.Complete(ctx, model.CompletionRequest{
		Model:       e.modelID,
		Messages:    []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text(prompt)}}},
		Temperature: 0,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("statesvc: extraction call failed: %w", err)
	}

	if e.costCalc != nil && e.accum != nil {
		if dollars, err := e.costCalc.CalculateCost(e.modelID, resp.Usage.InputTokens, resp.Usage.OutputTokens); err == nil {
			e.accum.AddReasoningCost(dollars)
		} else {
			e.log.Debug().Err(err).Str("model", e.modelID).Msg("extraction cost calculation skipped")
		}
	}

	var text strings.Builder
	for _, block := range resp.Message.Content {
		if block.Kind == model.BlockText {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

const userInfoExtractionPrompt = `Extract user information from this conversation exchange.

User: %s
Assistant: %s

Extract ONLY information that is explicitly stated. Return JSON with these fields
(omit fields that are not mentioned): name, age, location, occupation,
expertise_level (beginner|intermediate|expert), programming_languages,
frameworks, interests, current_project, project_tech_stack,
communication_style (concise|detailed|technical).

Return ONLY valid JSON, no additional text. Return {} if nothing to extract.`

// ExtractUserInfo returns explicitly-stated profile fields mentioned in
// the exchange, or an empty map if extraction is disabled, the exchange
// is too short to plausibly carry profile info, or nothing was found.
func (e *LLMExtractor) ExtractUserInfo(ctx context.Context, userMsg, assistantMsg string) (map[string]any, error) {
	if !e.EnableUserExtraction {
		return nil, nil
	}
	if len(userMsg) < 10 && len(assistantMsg) < 10 {
		return nil, nil
	}

	text, err := e.complete(ctx, fmt.Sprintf(userInfoExtractionPrompt, userMsg, assistantMsg))
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		e.log.Warn().Err(err).Msg("failed to parse user info extraction response")
		return nil, nil
	}
	return fields, nil
}

const factExtractionPrompt = `Extract factual statements from the assistant's response that might be
useful for future reference in this session.

User: %s
Assistant: %s

Return a JSON array of factual statements: configuration values, file paths,
technical facts, decisions, key findings. Self-contained, concise, no
conversational filler, maximum 10 facts.

Return ONLY a valid JSON array, no additional text. Return [] if nothing.`

// ExtractFacts returns knowledge-base-worthy facts from the assistant's
// response, capped at 10.
func (e *LLMExtractor) ExtractFacts(ctx context.Context, userMsg, assistantMsg string) ([]string, error) {
	if !e.EnableFactExtraction {
		return nil, nil
	}
	if len(assistantMsg) < 20 {
		return nil, nil
	}

	text, err := e.complete(ctx, fmt.Sprintf(factExtractionPrompt, userMsg, assistantMsg))
	if err != nil {
		return nil, err
	}

	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		e.log.Warn().Err(err).Msg("failed to parse fact extraction response")
		return nil, nil
	}

	facts := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			facts = append(facts, strings.TrimSpace(s))
		}
		if len(facts) == 10 {
			break
		}
	}
	return facts, nil
}

const intentClassificationPrompt = `Classify the user's intent from their message.

User message: %s

Classify into one of: question (asking for information), task (requesting an
action), feedback (reacting to, correcting, or evaluating prior output), or
smalltalk (casual conversation, acknowledgment).

Return JSON: {"type": "question|task|feedback|smalltalk", "confidence": 0.0-1.0,
"details": {"topic": "optional", "complexity": "simple|medium|complex"}}

Return ONLY valid JSON, no additional text.`

// ClassifyIntent classifies a user message's intent, defaulting to
// IntentSmalltalk at low confidence when extraction is disabled, the
// message is too short to carry signal, or the model's response fails
// to parse.
func (e *LLMExtractor) ClassifyIntent(ctx context.Context, userMsg string) (IntentClassification, error) {
	fallback := IntentClassification{Type: IntentSmalltalk, Confidence: 0.5}
	if !e.EnableIntentExtraction {
		return fallback, nil
	}
	if len(userMsg) < 5 {
		return IntentClassification{Type: IntentSmalltalk, Confidence: 0.7}, nil
	}

	text, err := e.complete(ctx, fmt.Sprintf(intentClassificationPrompt, userMsg))
	if err != nil {
		return IntentClassification{}, err
	}

	var intent IntentClassification
	if err := json.Unmarshal([]byte(text), &intent); err != nil || !intent.Type.valid() {
		e.log.Warn().Err(err).Msg("failed to parse intent classification response")
		return fallback, nil
	}
	if intent.Confidence == 0 {
		intent.Confidence = 0.7
	}
	return intent, nil
}

func (i Intent) valid() bool {
	switch i {
	case IntentQuestion, IntentTask, IntentFeedback, IntentSmalltalk:
		return true
	default:
		return false
	}
}
