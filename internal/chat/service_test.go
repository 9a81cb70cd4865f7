package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/embedding"
	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/retrieval"
	"pdfchat-backend/internal/shared/apperr"
	"pdfchat-backend/internal/vectorindex"
)

// testOwner matches the identity the auth middleware gives guest "g1".
const testOwner = "guest:g1"

type failingSearch struct{ err error }

func (f failingSearch) Search(ctx context.Context, documentID, query string, k int) ([]string, error) {
	return nil, f.err
}

type fixture struct {
	docs  *documents.MemoryRepo
	store *messages.MemoryStore
	index *vectorindex.MemoryIndex
	model *llm.FakeCompleter
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		docs:  documents.NewMemoryRepo(),
		store: messages.NewMemoryStore(),
		index: vectorindex.NewMemoryIndex(),
		model: &llm.FakeCompleter{Fragments: []string{"The ", "answer."}},
	}
	_, _, err := f.docs.CreateIfAbsent(ctx, documents.Document{ID: "doc-1", OwnerID: testOwner, StorageKey: "k"})
	require.NoError(t, err)

	embedder := embedding.NewHashEmbedder(64)
	pages := []string{"refunds are accepted within 30 days", "shipping takes five business days"}
	vectors, err := embedder.EmbedBatch(ctx, pages)
	require.NoError(t, err)
	passages := make([]vectorindex.Passage, len(pages))
	for i := range pages {
		passages[i] = vectorindex.Passage{DocumentID: "doc-1", Page: i + 1, Text: pages[i], Vector: vectors[i]}
	}
	require.NoError(t, f.index.Upsert(ctx, "doc-1", passages))

	f.svc = NewService(f.docs, f.store, retrieval.NewService(embedder, f.index), f.model)
	return f
}

func collect(out *[]string) func(string) error {
	return func(fragment string) error {
		*out = append(*out, fragment)
		return nil
	}
}

func turn(question string) Turn {
	return Turn{OwnerID: testOwner, DocumentID: "doc-1", Question: question}
}

func TestAnswerStreamsAndPersists(t *testing.T) {
	f := newFixture(t)
	var got []string

	require.NoError(t, f.svc.Answer(context.Background(), turn("how long do refunds take?"), collect(&got)))
	require.Equal(t, []string{"The ", "answer."}, got)

	hist, err := f.store.RecentHistory(context.Background(), "doc-1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.True(t, hist[0].AuthorIsUser)
	require.Equal(t, "how long do refunds take?", hist[0].Text)
	require.False(t, hist[1].AuthorIsUser)
	require.Equal(t, "The answer.", hist[1].Text)

	prompt := f.model.Calls()[0][1].Content
	require.Contains(t, prompt, "refunds are accepted within 30 days")
}

func TestAnswerHistoryExcludesCurrentQuestion(t *testing.T) {
	f := newFixture(t)
	var sink []string
	require.NoError(t, f.svc.Answer(context.Background(), turn("first question"), collect(&sink)))
	require.NoError(t, f.svc.Answer(context.Background(), turn("second question"), collect(&sink)))

	prompt := f.model.Calls()[1][1].Content
	conversation := prompt[strings.Index(prompt, "PREVIOUS CONVERSATION:"):strings.Index(prompt, "CONTEXT:")]
	require.Contains(t, conversation, "User: first question")
	require.Contains(t, conversation, "Assistant: The answer.")
	require.NotContains(t, conversation, "second question")
}

func TestAnswerHistoryWindowIsSix(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		_, err := f.store.Append(context.Background(), messages.Message{DocumentID: "doc-1", OwnerID: testOwner, AuthorIsUser: true, Text: "old"})
		require.NoError(t, err)
	}
	var sink []string
	require.NoError(t, f.svc.Answer(context.Background(), turn("new"), collect(&sink)))

	prompt := f.model.Calls()[0][1].Content
	require.Equal(t, messages.DefaultHistoryLimit, strings.Count(prompt, "User: old"))
}

func TestAnswerForeignDocumentIsNotFound(t *testing.T) {
	f := newFixture(t)
	tr := turn("hi")
	tr.OwnerID = "intruder"

	err := f.svc.Answer(context.Background(), tr, collect(new([]string)))
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Empty(t, f.model.Calls())

	hist, _ := f.store.RecentHistory(context.Background(), "doc-1", 10)
	require.Empty(t, hist)
}

func TestAnswerValidation(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.svc.Answer(context.Background(), Turn{DocumentID: "doc-1", Question: "q"}, collect(new([]string))), apperr.ErrAuthorization)
	require.ErrorIs(t, f.svc.Answer(context.Background(), Turn{OwnerID: testOwner, DocumentID: "doc-1", Question: "  "}, collect(new([]string))), apperr.ErrValidation)
}

func TestAnswerUpstreamFailureKeepsQuestionOnly(t *testing.T) {
	f := newFixture(t)
	f.model.Err = errors.New("connection reset")
	f.model.FailAfter = 1
	var got []string

	err := f.svc.Answer(context.Background(), turn("q"), collect(&got))
	require.ErrorIs(t, err, apperr.ErrCompletion)
	require.Equal(t, []string{"The "}, got)

	hist, _ := f.store.RecentHistory(context.Background(), "doc-1", 10)
	require.Len(t, hist, 1)
	require.True(t, hist[0].AuthorIsUser)
}

func TestAnswerRetrievalFailureBeforeStreaming(t *testing.T) {
	f := newFixture(t)
	f.svc.search = failingSearch{err: apperr.Upstream(apperr.ErrEmbeddingUnavailable, "embed query", errors.New("503"))}

	err := f.svc.Answer(context.Background(), turn("q"), collect(new([]string)))
	require.ErrorIs(t, err, apperr.ErrUpstream)
	require.Empty(t, f.model.Calls())
}

func TestAnswerCancelledMidStreamDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := f.svc.Answer(ctx, turn("q"), func(string) error {
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	hist, _ := f.store.RecentHistory(context.Background(), "doc-1", 10)
	require.Len(t, hist, 1)
}

// finishThenCancel completes the whole answer and only then cancels the turn.
type finishThenCancel struct {
	cancel context.CancelFunc
}

func (m finishThenCancel) Stream(ctx context.Context, _ []llm.Message, onFragment func(string) error) error {
	if err := onFragment("full answer"); err != nil {
		return err
	}
	m.cancel()
	return nil
}

func TestAnswerPersistsWhenClientLeavesAfterCompletion(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(f.docs, f.store, retrieval.NewService(embedding.NewHashEmbedder(64), f.index), finishThenCancel{cancel: cancel})

	var got []string
	require.NoError(t, svc.Answer(ctx, turn("q"), collect(&got)))

	hist, err := f.store.RecentHistory(context.Background(), "doc-1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.False(t, hist[1].AuthorIsUser)
	require.Equal(t, "full answer", hist[1].Text)
}
