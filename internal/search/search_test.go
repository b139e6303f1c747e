package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type countingSearcher struct {
	calls int
	resp  Response
	err   error
}

func (c *countingSearcher) Search(context.Context, string) (Response, error) {
	c.calls++
	return c.resp, c.err
}

func TestValidateQuery(t *testing.T) {
	q, err := ValidateQuery("  roi  ")
	require.NoError(t, err)
	assert.Equal(t, "roi", q)

	_, err = ValidateQuery(" ab ")
	require.ErrorIs(t, err, ErrInvalidQuery)
	assert.Contains(t, err.Error(), MsgQueryTooShort)
}

func TestServiceRejectsShortQueryWithoutCallingProvider(t *testing.T) {
	s := &countingSearcher{}
	_, err := NewService(s, ServiceOptions{}).Search(context.Background(), "ab")
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Zero(t, s.calls)
}

func TestServiceWrapsProviderErrors(t *testing.T) {
	s := &countingSearcher{err: errors.New("upstream exploded")}
	_, err := NewService(s, ServiceOptions{}).Search(context.Background(), "AR manufacturing ROI")
	assert.ErrorIs(t, err, ErrSearchFailed)
}

func TestServiceNormalizesNilResults(t *testing.T) {
	s := &countingSearcher{resp: Response{Reasoning: "nothing relevant"}}
	resp, err := NewService(s, ServiceOptions{}).Search(context.Background(), "AR manufacturing ROI")
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestServiceCachesByNormalizedQuery(t *testing.T) {
	s := &countingSearcher{resp: Response{Results: []Result{{Title: "t", Link: "l", Summary: "s"}}, Reasoning: "r"}}
	svc := NewService(s, ServiceOptions{Cache: NewMemoryCache(), CacheTTL: time.Minute})

	first, err := svc.Search(context.Background(), "AR  Manufacturing ROI")
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), "ar manufacturing roi")
	require.NoError(t, err)

	assert.Equal(t, 1, s.calls)
	assert.Equal(t, first, second)
}

func TestServiceDoesNotCacheFailures(t *testing.T) {
	s := &countingSearcher{err: errors.New("down")}
	svc := NewService(s, ServiceOptions{Cache: NewMemoryCache(), CacheTTL: time.Minute})
	_, _ = svc.Search(context.Background(), "headset costs")
	_, _ = svc.Search(context.Background(), "headset costs")
	assert.Equal(t, 2, s.calls)
}

func TestMemoryCacheExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))

	v, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(time.Minute)
	_, ok, err = c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheSweepsExpiredEntriesOnSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("q%d", i), "v", time.Minute))
	}
	assert.Equal(t, 50, c.Len())

	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "fresh", "v", time.Minute))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheIsBounded(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCacheSize(3)
	c.now = func() time.Time { return now }
	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		require.NoError(t, c.Set(ctx, fmt.Sprintf("q%d", i), "v", time.Hour))
	}
	assert.Equal(t, 3, c.Len())

	_, ok, err := c.Get(ctx, "q9")
	require.NoError(t, err)
	assert.True(t, ok, "newest entry survives")
	_, ok, _ = c.Get(ctx, "q0")
	assert.False(t, ok, "oldest entry is evicted")

	require.NoError(t, c.Set(ctx, "q9", "updated", time.Hour))
	assert.Equal(t, 3, c.Len(), "overwriting a key does not evict")
}

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c := NewRedisCache(addr, "", 0)
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	key := CacheKey("redis round trip " + time.Now().String())
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, `{"results":[]}`, time.Minute))
	v, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"results":[]}`, v)
}

func TestOfflineSearcherReturnsCatalog(t *testing.T) {
	resp, err := NewOfflineSearcher(DefaultCatalog()).Search(context.Background(), "logistics")
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Example AR/MR ROI Document 1", resp.Results[0].Title)
	assert.Equal(t, "https://example.com/ar-mr-roi-2", resp.Results[1].Link)
	assert.NotEmpty(t, resp.Reasoning)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`documents:
  - title: Remote Assist Payback
    link: https://example.com/remote-assist
    snippet: Field service savings from remote expert calls.
`), 0o600))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	docs, err := cat.Documents(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Remote Assist Payback", docs[0].Title)
}

func TestLoadCatalogRejectsDocumentsWithoutLink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("documents:\n  - title: Orphan\n"), 0o600))
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestFixtureCatalogLatencyHonorsContext(t *testing.T) {
	cat := DefaultCatalog()
	cat.Latency = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cat.Documents(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

type scriptedGenerator struct {
	responses []*genai.GenerateContentResponse
	requests  [][]*genai.Content
}

func (s *scriptedGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.requests = append(s.requests, append([]*genai.Content(nil), contents...))
	i := len(s.requests) - 1
	if i >= len(s.responses) {
		return nil, errors.New("unexpected call")
	}
	return s.responses[i], nil
}

func toolCallResponse(query string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{
			FunctionCall: &genai.FunctionCall{Name: toolSearchDocuments, Args: map[string]any{"query": query}},
		}}},
	}}}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}}}
}

func TestGeminiSearcherRunsToolLoop(t *testing.T) {
	gen := &scriptedGenerator{responses: []*genai.GenerateContentResponse{
		toolCallResponse("AR ROI manufacturing"),
		textResponse("```json\n{\"results\":[{\"title\":\"Example AR/MR ROI Document 1\",\"link\":\"https://example.com/ar-mr-roi-1\",\"summary\":\"Manufacturing benefits.\"}],\"reasoning\":\"Searched the catalog.\"}\n```"),
	}}
	resp, err := NewGeminiSearcher(gen, "", DefaultCatalog(), nil).Search(context.Background(), "manufacturing")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Searched the catalog.", resp.Reasoning)

	require.Len(t, gen.requests, 2)
	second := gen.requests[1]
	require.Len(t, second, 3)
	last := second[2]
	require.Len(t, last.Parts, 1)
	require.NotNil(t, last.Parts[0].FunctionResponse)
	assert.Equal(t, toolSearchDocuments, last.Parts[0].FunctionResponse.Name)
}

func TestGeminiSearcherRejectsAnswerWithoutResults(t *testing.T) {
	gen := &scriptedGenerator{responses: []*genai.GenerateContentResponse{
		textResponse(`{"reasoning":"I could not find anything."}`),
	}}
	_, err := NewGeminiSearcher(gen, "", DefaultCatalog(), nil).Search(context.Background(), "manufacturing")
	assert.ErrorIs(t, err, ErrMissingResults)
}

func TestGeminiSearcherStopsAfterTooManyToolTurns(t *testing.T) {
	var responses []*genai.GenerateContentResponse
	for i := 0; i < maxToolTurns; i++ {
		responses = append(responses, toolCallResponse("again"))
	}
	gen := &scriptedGenerator{responses: responses}
	_, err := NewGeminiSearcher(gen, "", DefaultCatalog(), nil).Search(context.Background(), "manufacturing")
	assert.Error(t, err)
	assert.Len(t, gen.requests, maxToolTurns)
}

type jsonCaller struct {
	responses []string
	prompts   []string
}

func (j *jsonCaller) GenerateJSON(_ context.Context, prompt string) (string, error) {
	j.prompts = append(j.prompts, prompt)
	i := len(j.prompts) - 1
	if i < len(j.responses) {
		return j.responses[i], nil
	}
	return "", nil
}

func (j *jsonCaller) ModelName() string { return "fake" }

func TestPromptedSearcherIncludesCatalogAndRequiresResults(t *testing.T) {
	caller := &jsonCaller{responses: []string{
		`{"reasoning":"missing results"}`,
		`{"results":[],"reasoning":"nothing matched"}`,
	}}
	resp, err := NewPromptedSearcher(caller, DefaultCatalog(), nil).Search(context.Background(), "retail")
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, "nothing matched", resp.Reasoning)

	require.Len(t, caller.prompts, 2)
	assert.Contains(t, caller.prompts[0], "https://example.com/ar-mr-roi-1")
	assert.Contains(t, caller.prompts[0], "User Query: retail")
}
