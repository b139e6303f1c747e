package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/joelkehle/roi-copilot/internal/llm"
)

const (
	toolSearchDocuments = "searchDocuments"
	maxToolTurns        = 4
)

const agentInstructions = `You are an AI search agent tasked with finding relevant documentation related to AR/MR ROI (Return on Investment).

The user will provide a search query, and your goal is to find the most relevant documents and provide a summary of each.
Return a list of search results, including the title, link, and summary of each document.
Also, provide a chain of thought reasoning explaining the steps you took to find the documents.`

const answerFormat = `Answer with JSON only, in this shape:
{"results":[{"title":"...","link":"...","summary":"..."}],"reasoning":"..."}`

// GeminiSearcher lets Gemini call the searchDocuments tool against the
// catalog, then parses its final JSON answer.
type GeminiSearcher struct {
	models  llm.ContentGenerator
	model   string
	catalog Catalog
	log     *zap.Logger
}

func NewGeminiSearcher(models llm.ContentGenerator, model string, catalog Catalog, log *zap.Logger) *GeminiSearcher {
	if strings.TrimSpace(model) == "" {
		model = llm.DefaultGeminiModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GeminiSearcher{models: models, model: model, catalog: catalog, log: log}
}

func searchTool() *genai.Tool {
	return &genai.Tool{FunctionDeclarations: []*genai.FunctionDeclaration{{
		Name:        toolSearchDocuments,
		Description: "Searches for documents related to AR/MR ROI on the web.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {Type: genai.TypeString, Description: "The search query."},
			},
			Required: []string{"query"},
		},
	}}}
}

func (g *GeminiSearcher) Search(ctx context.Context, query string) (Response, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(agentInstructions+"\nYou must use the searchDocuments tool to find the documents.", genai.RoleUser),
		Tools:             []*genai.Tool{searchTool()},
		Temperature:       genai.Ptr[float32](0),
	}
	contents := []*genai.Content{
		genai.NewContentFromText("User Query: "+query+"\n\n"+answerFormat, genai.RoleUser),
	}

	for turn := 1; turn <= maxToolTurns; turn++ {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
		if err != nil {
			return Response{}, err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return Response{}, errors.New("gemini returned no candidates")
		}
		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return decodeResponse(llm.StripCodeFences(resp.Text()))
		}

		contents = append(contents, resp.Candidates[0].Content)
		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			g.log.Debug("search_tool_call", zap.String("tool", call.Name), zap.Int("turn", turn))
			parts = append(parts, genai.NewPartFromFunctionResponse(call.Name, g.callTool(ctx, call)))
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}
	return Response{}, fmt.Errorf("no final answer after %d tool turns", maxToolTurns)
}

func (g *GeminiSearcher) callTool(ctx context.Context, call *genai.FunctionCall) map[string]any {
	if call.Name != toolSearchDocuments {
		return map[string]any{"error": "unknown tool " + call.Name}
	}
	q, _ := call.Args["query"].(string)
	docs, err := g.catalog.Documents(ctx, q)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, map[string]any{"title": d.Title, "link": d.Link, "snippet": d.Snippet})
	}
	return map[string]any{"output": out}
}

// PromptedSearcher fetches catalog documents up front and asks the model to
// rank and summarize them.
type PromptedSearcher struct {
	exec    *llm.Executor
	catalog Catalog
}

func NewPromptedSearcher(caller llm.Caller, catalog Catalog, log *zap.Logger) *PromptedSearcher {
	return &PromptedSearcher{exec: llm.NewExecutor(caller, log), catalog: catalog}
}

func (p *PromptedSearcher) Search(ctx context.Context, query string) (Response, error) {
	docs, err := p.catalog.Documents(ctx, query)
	if err != nil {
		return Response{}, fmt.Errorf("catalog: %w", err)
	}
	b, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return Response{}, err
	}
	prompt := agentInstructions +
		"\nOnly use the documents below; do not invent links.\n\nDocuments:\n" + string(b) +
		"\n\nUser Query: " + query + "\n\n" + answerFormat

	var wire struct {
		Results   *[]Result `json:"results"`
		Reasoning string    `json:"reasoning"`
	}
	if _, err := p.exec.Run(ctx, "search", prompt, &wire, func() error {
		if wire.Results == nil {
			return ErrMissingResults
		}
		return nil
	}); err != nil {
		return Response{}, err
	}
	return Response{Results: *wire.Results, Reasoning: wire.Reasoning}, nil
}

// OfflineSearcher maps catalog documents straight to results. It backs the
// service when no model credentials are configured.
type OfflineSearcher struct {
	catalog Catalog
}

func NewOfflineSearcher(catalog Catalog) *OfflineSearcher {
	return &OfflineSearcher{catalog: catalog}
}

func (o *OfflineSearcher) Search(ctx context.Context, query string) (Response, error) {
	docs, err := o.catalog.Documents(ctx, query)
	if err != nil {
		return Response{}, fmt.Errorf("catalog: %w", err)
	}
	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, Result{Title: d.Title, Link: d.Link, Summary: d.Snippet})
	}
	return Response{
		Results: results,
		Reasoning: fmt.Sprintf("Looked up %q in the document catalog and returned %d matching documents with their catalog summaries. No language model is configured, so the results are not re-ranked.",
			query, len(results)),
	}, nil
}
