package llm

import (
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Canned replies substituted when the backend fails. Every variant names a
// direct human contact channel so a degraded assistant still converts.
const (
	FallbackRateLimited = "I'm answering a lot of questions right now and need a moment to catch up. " +
		"Please try again shortly — or skip the wait and reach the team directly at hello@nuvora.ai, " +
		"or through the contact form on this page."

	FallbackAuth = "I'm having trouble reaching my knowledge service at the moment. " +
		"The team would still love to hear from you: write to hello@nuvora.ai or use the contact form " +
		"and a real person will get back to you quickly."

	FallbackGeneric = "Something went wrong on my end while thinking about that. " +
		"Please try again in a moment, or contact the team directly at hello@nuvora.ai — " +
		"the contact form on this page goes straight to a human."
)

// Fallback maps a backend error to one of the three canned replies by HTTP
// status class: rate-limited, auth failure, or anything else.
func Fallback(err error) string {
	switch statusCode(err) {
	case http.StatusTooManyRequests:
		return FallbackRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return FallbackAuth
	default:
		return FallbackGeneric
	}
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
