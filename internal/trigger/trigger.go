// Package trigger classifies raw visitor utterances against fixed keyword
// sets. Everything here is pure and stateless so orchestration can be
// tested without it and it can be tested without orchestration.
package trigger

import (
	"regexp"
	"strings"
)

var contactKeywords = []string{
	"talk to someone",
	"talk to a human",
	"speak to someone",
	"contact you",
	"get in touch",
	"pricing",
	"quote",
	"schedule a meeting",
	"schedule a call",
	"book a call",
	"book a demo",
	"request a demo",
	"sales team",
	"hire you",
	"work with you",
}

var startupKeywords = []string{
	"startup idea",
	"business idea",
	"mvp",
	"business model",
	"product market fit",
	"product-market fit",
	"go to market",
	"go-to-market",
	"pitch deck",
	"co-founder",
	"cofounder",
	"fundraising",
	"seed round",
	"validate my idea",
}

var escalationKeywords = []string{
	"market data",
	"market research",
	"competitor analysis",
	"competitive analysis",
	"financial projections",
	"financial model",
	"regulatory",
	"compliance requirements",
	"due diligence",
	"industry report",
	"market size",
	"valuation",
}

var searchKeywords = []string{
	"current",
	"latest",
	"recent",
	"trends",
	"trending",
	"today",
	"this year",
	"this week",
	"right now",
	"news",
	"2024",
	"2025",
	"2026",
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsContactRequest reports whether the visitor is asking to reach a human:
// pricing, quotes, meetings, direct contact.
func IsContactRequest(text string) bool { return containsAny(text, contactKeywords) }

// IsStartupTopic reports whether the utterance is about building a venture.
func IsStartupTopic(text string) bool { return containsAny(text, startupKeywords) }

// IsEscalationTopic reports whether the utterance touches analysis work
// that warrants a scripted handoff to a human expert.
func IsEscalationTopic(text string) bool { return containsAny(text, escalationKeywords) }

// NeedsLiveSearch reports whether the utterance asks for information fresher
// than the model's knowledge.
func NeedsLiveSearch(text string) bool { return containsAny(text, searchKeywords) }

// ExtractURLs returns every embedded URL in order of appearance. Trailing
// sentence punctuation is stripped. Downstream only analyzes the first
// match; that is a documented limitation, not an accident.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if matches == nil {
		return nil
	}
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, strings.TrimRight(m, ".,;:!?)"))
	}
	return urls
}
