package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloop/agentcore/pkg/conversation"
	"github.com/driftloop/agentcore/pkg/stateprovider"
)

type stubSummarizer struct {
	summary string
	calls   int
}

func (s *stubSummarizer) Summarize(_ context.Context, req SummarizeRequest) (SummaryResult, error) {
	s.calls++
	if len(req.Messages) == 0 {
		return SummaryResult{Skipped: true}, nil
	}
	return SummaryResult{
		Summary:            s.summary,
		TotalMessages:      len(req.Messages),
		MessagesSummarized: len(req.Messages),
	}, nil
}

func newTestManager() (*Manager, *stubSummarizer, stateprovider.Provider) {
	provider := stateprovider.NewInMemory()
	summarizer := &stubSummarizer{summary: "the user asked about X"}
	mgr := New(provider, "you are helpful", "claude-sonnet-4-6", true, summarizer, zerolog.Nop())
	return mgr, summarizer, provider
}

func testConversation() *conversation.Conversation {
	return conversation.New("sys", conversation.Config{})
}

func TestGetOrCreateDefaultSessionCreatesWhenAbsent(t *testing.T) {
	mgr, _, _ := newTestManager()
	s, err := mgr.GetOrCreateDefaultSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionID, s.ID)
	assert.Same(t, s, mgr.GetActiveSession())
}

func TestGetOrCreateDefaultSessionRestoresFromStorage(t *testing.T) {
	mgr, _, provider := newTestManager()
	ctx := context.Background()

	original, err := mgr.CreateSession(DefaultSessionID, "Default Session")
	require.NoError(t, err)
	original.Conversation.AddUserMessage("hello")
	require.NoError(t, mgr.SaveSessionSync(ctx, original))

	fresh := New(provider, "you are helpful", "claude-sonnet-4-6", true, &stubSummarizer{}, zerolog.Nop())
	restored, err := fresh.GetOrCreateDefaultSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.MessageCount())
}

func TestSwitchSessionAutoSavesPreviousActive(t *testing.T) {
	mgr, _, provider := newTestManager()
	ctx := context.Background()

	work, err := mgr.CreateSession("work", "Work")
	require.NoError(t, err)
	work.Conversation.AddUserMessage("first session message")

	_, err = mgr.CreateSession("personal", "Personal")
	require.NoError(t, err)

	_, err = mgr.SwitchSession(ctx, "personal")
	require.NoError(t, err)
	assert.Equal(t, "personal", mgr.GetActiveSession().ID)

	require.Eventually(t, func() bool {
		ok, _ := provider.Exists(ctx, sessionKey("work"))
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestDeleteSessionSwitchesActiveWhenDeletingActive(t *testing.T) {
	mgr, _, _ := newTestManager()
	ctx := context.Background()

	_, err := mgr.CreateSession("a", "A")
	require.NoError(t, err)
	_, err = mgr.CreateSession("b", "B")
	require.NoError(t, err)

	_, err = mgr.SwitchSession(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, mgr.DeleteSession(ctx, "a"))
	assert.Equal(t, "b", mgr.GetActiveSession().ID)
}

func TestMigrateLegacySessionFilePromotesOldFileToDefaultKey(t *testing.T) {
	dir := t.TempDir()
	fileProvider := stateprovider.NewFile(dir)

	legacyPath := filepath.Join(dir, "session.json")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(legacyPath, []byte(`{"metadata":{"session_id":"old"}}`), 0o644))

	mgr := New(fileProvider, "sys", "m", false, &stubSummarizer{}, zerolog.Nop())
	require.NoError(t, mgr.MigrateLegacySessionFile(context.Background()))

	exists, err := fileProvider.Exists(context.Background(), sessionKey(DefaultSessionID))
	require.NoError(t, err)
	assert.True(t, exists)
	_, err = os.Stat(legacyPath)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateSessionSummaryRejectsDuplicateConcatenation(t *testing.T) {
	mgr, _, _ := newTestManager()
	s := NewSession("s1", "S1", "m", testConversation())
	s.Conversation.AddUserMessage("hello")
	s.ConversationSummary = "short existing summary"

	longDuplicate := s.ConversationSummary + " " + strings.Repeat("padding ", 20)
	mgr.summarizer = &stubSummarizer{summary: longDuplicate}

	result, err := mgr.UpdateSessionSummary(context.Background(), s, false)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Summary)
	assert.Equal(t, "short existing summary", s.ConversationSummary, "duplicate-concatenation summary must be rejected")
}

func TestUpdateSessionSummaryAcceptsGenuineExtension(t *testing.T) {
	mgr, summarizer, _ := newTestManager()
	s := NewSession("s1", "S1", "m", testConversation())
	s.Conversation.AddUserMessage("hello")

	summarizer.summary = "the user said hello"
	result, err := mgr.UpdateSessionSummary(context.Background(), s, false)
	require.NoError(t, err)
	assert.Equal(t, "the user said hello", s.ConversationSummary)
	assert.Equal(t, 1, result.MessagesSummarized)
}

func TestUpdateSessionSummaryExactRatioBoundaryIsInclusiveReject(t *testing.T) {
	mgr, _, _ := newTestManager()
	s := NewSession("s1", "S1", "m", testConversation())
	s.Conversation.AddUserMessage("hello")
	existing := "0123456789" // length 10
	s.ConversationSummary = existing

	// Exactly 1.5x longer (length 15), starting with existing: must reject
	// per the inclusive ">=" boundary decision.
	exactlyAtBoundary := existing + "01234"
	require.Len(t, exactlyAtBoundary, 15)
	mgr.summarizer = &stubSummarizer{summary: exactlyAtBoundary}

	_, err := mgr.UpdateSessionSummary(context.Background(), s, false)
	require.NoError(t, err)
	assert.Equal(t, existing, s.ConversationSummary)
}
