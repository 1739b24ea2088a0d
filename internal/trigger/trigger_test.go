package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsContactRequest(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I'd like to schedule a meeting", true},
		{"tell me about pricing tiers", true},
		{"Can I get a QUOTE for this project?", true},
		{"I want to talk to someone real", true},
		{"what is your company", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsContactRequest(c.text), "text=%q", c.text)
	}
}

func TestIsStartupTopic(t *testing.T) {
	assert.True(t, IsStartupTopic("I have a startup idea for logistics"))
	assert.True(t, IsStartupTopic("how do I build an MVP fast"))
	assert.True(t, IsStartupTopic("is my business model viable"))
	assert.False(t, IsStartupTopic("how is the weather"))
}

func TestIsEscalationTopic(t *testing.T) {
	assert.True(t, IsEscalationTopic("I need competitor analysis for fintech"))
	assert.True(t, IsEscalationTopic("can you do financial projections"))
	assert.True(t, IsEscalationTopic("what are the regulatory hurdles"))
	assert.False(t, IsEscalationTopic("tell me a joke"))
}

func TestNeedsLiveSearch(t *testing.T) {
	assert.True(t, NeedsLiveSearch("what are the latest AI trends"))
	assert.True(t, NeedsLiveSearch("market outlook for 2025"))
	assert.True(t, NeedsLiveSearch("what happened today"))
	assert.False(t, NeedsLiveSearch("explain your onboarding"))
}

func TestExtractURLs(t *testing.T) {
	assert.Equal(t, []string{"https://example.com"}, ExtractURLs("check https://example.com now"))
	assert.Nil(t, ExtractURLs("no links here"))

	got := ExtractURLs("compare http://a.io and https://b.io/page?x=1, please")
	assert.Equal(t, []string{"http://a.io", "https://b.io/page?x=1"}, got)

	// trailing punctuation is not part of the URL
	assert.Equal(t, []string{"https://example.com/docs"}, ExtractURLs("see https://example.com/docs."))
}

func TestPredicatesAreIndependent(t *testing.T) {
	text := "latest market data for my startup idea, can we schedule a meeting?"
	assert.True(t, IsContactRequest(text))
	assert.True(t, IsStartupTopic(text))
	assert.True(t, IsEscalationTopic(text))
	assert.True(t, NeedsLiveSearch(text))
}
