// Package enrich sequences the capability collaborators and merges their
// output into a single enrichment block appended to the user utterance.
// Stage order is a contract: the model consuming the result reads top to
// bottom, and later sections may refer to artifacts introduced earlier.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/nuvora/concierge/internal/collab"
	"github.com/nuvora/concierge/internal/logger"
	"github.com/nuvora/concierge/internal/trigger"
)

// Collaborator contracts, defined consumer-side so tests and the HTTP
// clients in internal/collab both satisfy them.
type WebsiteAnalyzer interface {
	Analyze(ctx context.Context, url string) (*collab.WebsiteAnalysis, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type DocumentAnalyzer interface {
	Analyze(ctx context.Context, fileName string, data []byte) (*collab.DocumentAnalysis, error)
}

type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) (*collab.SearchResult, error)
}

// Document is an uploaded file attached to a turn.
type Document struct {
	Name string
	Data []byte
}

// Artifacts carries the attachments of one turn. Each is consumed at most
// once; the orchestrator clears them after the turn.
type Artifacts struct {
	Document *Document
	Audio    []byte
}

func (a *Artifacts) empty() bool {
	return a == nil || (a.Document == nil && len(a.Audio) == 0)
}

// Empty reports whether no artifact is attached.
func (a *Artifacts) Empty() bool { return a.empty() }

// Result is the outcome of one pipeline run.
type Result struct {
	// EffectiveUtterance is the text the turn proceeds with; a voice
	// transcript replaces an empty typed utterance.
	EffectiveUtterance string
	// Enrichment is the concatenated labeled sections, empty when no stage
	// produced anything.
	Enrichment string
}

// Prompt is the enriched utterance sent to the model.
func (r Result) Prompt() string {
	if r.Enrichment == "" {
		return r.EffectiveUtterance
	}
	return r.EffectiveUtterance + "\n\n" + r.Enrichment
}

const (
	contentSnippetLimit = 1500
	headingsLimit       = 5
	searchMaxResults    = 3
)

type Pipeline struct {
	website  WebsiteAnalyzer
	speech   Transcriber
	document DocumentAnalyzer
	search   SearchProvider
}

// NewPipeline wires the four collaborators. Any of them may be nil, which
// disables the corresponding stage.
func NewPipeline(website WebsiteAnalyzer, speech Transcriber, document DocumentAnalyzer, search SearchProvider) *Pipeline {
	return &Pipeline{website: website, speech: speech, document: document, search: search}
}

// Run executes the stages sequentially in their fixed order. Stage
// failures are logged and degrade to an omitted section (or, for website
// analysis, an in-band apology); they never fail the turn.
func (p *Pipeline) Run(ctx context.Context, utterance string, art *Artifacts) Result {
	res := Result{EffectiveUtterance: utterance}
	var sections []string

	// 1. Embedded URL -> website analysis. Only the first URL is analyzed.
	if urls := trigger.ExtractURLs(utterance); len(urls) > 0 && p.website != nil {
		url := urls[0]
		analysis, err := p.website.Analyze(ctx, url)
		if err != nil {
			logger.L.Warn("website analysis failed", "url", url, "error", err)
			sections = append(sections, fmt.Sprintf(
				"Website Analysis for %s:\nSorry, I couldn't analyze that page right now.", url))
		} else {
			sections = append(sections, websiteSection(url, analysis))
		}
	}

	// 2. Audio -> transcript. An empty typed utterance is replaced by it.
	if art != nil && len(art.Audio) > 0 && p.speech != nil {
		text, err := p.speech.Transcribe(ctx, art.Audio)
		if err != nil {
			logger.L.Warn("speech transcription failed", "error", err)
		} else if text != "" {
			sections = append(sections, "Voice Input Transcription:\n"+text)
			if strings.TrimSpace(res.EffectiveUtterance) == "" {
				res.EffectiveUtterance = text
			}
		}
	}

	// 3. Document -> structured analysis.
	if art != nil && art.Document != nil && p.document != nil {
		doc := art.Document
		analysis, err := p.document.Analyze(ctx, doc.Name, doc.Data)
		if err != nil {
			logger.L.Warn("document analysis failed", "file", doc.Name, "error", err)
		} else if analysis != nil {
			sections = append(sections, documentSection(doc.Name, analysis))
		}
	}

	// 4. Live search, keyed off the effective utterance so a voice-only
	// turn can still trigger it.
	if trigger.NeedsLiveSearch(res.EffectiveUtterance) && p.search != nil {
		result, err := p.search.Search(ctx, res.EffectiveUtterance, searchMaxResults)
		if err != nil {
			logger.L.Warn("live search failed", "error", err)
		} else if result != nil {
			if s := searchSection(result); s != "" {
				sections = append(sections, s)
			}
		}
	}

	res.Enrichment = strings.Join(sections, "\n\n")
	return res
}

func websiteSection(url string, a *collab.WebsiteAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Website Analysis for %s:\n", url)
	if a.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", a.Title)
	}
	if a.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", a.Description)
	}
	if len(a.Headings) > 0 {
		h := a.Headings
		if len(h) > headingsLimit {
			h = h[:headingsLimit]
		}
		fmt.Fprintf(&b, "Headings: %s\n", strings.Join(h, "; "))
	}
	fmt.Fprintf(&b, "Links: %d, Words: %d, E-commerce: %t, Business site: %t\n",
		a.LinksCount, a.WordCount, a.IsEcommerce, a.IsBusiness)
	if a.Content != "" {
		content := a.Content
		// rune-wise so a cut never leaves a broken multibyte sequence
		if runes := []rune(content); len(runes) > contentSnippetLimit {
			content = string(runes[:contentSnippetLimit])
		}
		fmt.Fprintf(&b, "Content: %s", content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func documentSection(name string, a *collab.DocumentAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document Analysis for %s:\n", name)
	if a.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", a.Type)
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", a.Summary)
	}
	if len(a.KeyPoints) > 0 {
		fmt.Fprintf(&b, "Key points: %s\n", strings.Join(a.KeyPoints, "; "))
	}
	if a.Recommendations != "" {
		fmt.Fprintf(&b, "Recommendations: %s", a.Recommendations)
	}
	return strings.TrimRight(b.String(), "\n")
}

func searchSection(r *collab.SearchResult) string {
	var lines []string
	if r.Abstract != "" {
		lines = append(lines, r.Abstract)
	}
	if r.Answer != "" {
		lines = append(lines, r.Answer)
	}
	for i, t := range r.RelatedTopics {
		if i >= searchMaxResults {
			break
		}
		if t.Text != "" {
			lines = append(lines, "- "+t.Text)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Current Information:\n" + strings.Join(lines, "\n")
}
