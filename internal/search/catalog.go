package search

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is a catalog entry handed to the model as tool output.
type Document struct {
	Title   string `yaml:"title" json:"title"`
	Link    string `yaml:"link" json:"link"`
	Snippet string `yaml:"snippet" json:"snippet"`
}

// Catalog supplies candidate documents for a query.
type Catalog interface {
	Documents(ctx context.Context, query string) ([]Document, error)
}

var defaultDocuments = []Document{
	{
		Title:   "Example AR/MR ROI Document 1",
		Link:    "https://example.com/ar-mr-roi-1",
		Snippet: "This document discusses the benefits of AR/MR in manufacturing.",
	},
	{
		Title:   "AR/MR ROI Case Study 2",
		Link:    "https://example.com/ar-mr-roi-2",
		Snippet: "A case study on how AR/MR improved efficiency in logistics.",
	},
}

// FixtureCatalog returns the same fixed documents for every query.
// Latency, when set, simulates a slow backend.
type FixtureCatalog struct {
	docs    []Document
	Latency time.Duration
}

func DefaultCatalog() *FixtureCatalog {
	return NewFixtureCatalog(defaultDocuments)
}

func NewFixtureCatalog(docs []Document) *FixtureCatalog {
	return &FixtureCatalog{docs: append([]Document(nil), docs...)}
}

type catalogFile struct {
	Documents []Document `yaml:"documents"`
}

// LoadCatalog reads documents from a YAML file:
//
//	documents:
//	  - title: ...
//	    link: ...
//	    snippet: ...
func LoadCatalog(path string) (*FixtureCatalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, d := range f.Documents {
		if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Link) == "" {
			return nil, fmt.Errorf("catalog %s: document %d needs title and link", path, i)
		}
	}
	return NewFixtureCatalog(f.Documents), nil
}

func (c *FixtureCatalog) Documents(ctx context.Context, _ string) ([]Document, error) {
	if c.Latency > 0 {
		t := time.NewTimer(c.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return append([]Document(nil), c.docs...), nil
}
