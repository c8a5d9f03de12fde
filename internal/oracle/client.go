// Package oracle is the single choke-point for calls to the external vision
// classifier. It owns the retry budget, the provider rate limit and response
// parsing; callers see typed errors and parsed verdicts only.
package oracle

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Image is a citizen-submitted photo payload.
type Image struct {
	Bytes []byte
	MIME  string
}

// Classification is the oracle's answer to "what is this issue".
type Classification struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// Comparison is the oracle's answer to "are these the same issue".
type Comparison struct {
	SameIssue   bool    `json:"same_issue"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// transport performs one raw model call. Split out so tests can substitute
// a scripted fake for the Anthropic client.
type transport interface {
	complete(ctx context.Context, prompt string, images []Image) (string, error)
}

type Client struct {
	transport transport
	limiter   *SlidingWindowLimiter
	retry     RetryPolicy
}

// NewClient wires a vision client against the Anthropic API.
func NewClient(apiKey, model string, maxPerMinute int, retry RetryPolicy) *Client {
	return &Client{
		transport: newAnthropicTransport(apiKey, model),
		limiter:   NewSlidingWindowLimiter(maxPerMinute, time.Minute),
		retry:     retry,
	}
}

func classifyPrompt(categories []string) string {
	return fmt.Sprintf(`You classify photos of civic problems reported by citizens.
Choose exactly one category from: %s.
If none fit, use "other".

Respond with JSON only (no markdown):
{"category": "pothole", "confidence": 0.92, "explanation": "..."}`,
		strings.Join(categories, ", "))
}

const comparePrompt = `You compare two photos of reported civic problems.
Decide whether they show the same underlying issue at the same spot
(same pothole, same garbage pile, same leak), not merely the same kind
of problem.

Respond with JSON only (no markdown):
{"same_issue": true, "confidence": 0.85, "explanation": "..."}`

// ClassifyImage asks the oracle what a submitted photo shows. Blocks for
// rate-limit room; retries transient failures per the policy.
func (c *Client) ClassifyImage(ctx context.Context, img Image, categories []string) (Classification, error) {
	var out Classification
	err := c.call(ctx, "classify", classifyPrompt(categories), []Image{img}, &out)
	if err != nil {
		return Classification{}, err
	}
	out.Category = strings.ToLower(strings.TrimSpace(out.Category))
	log.Printf("oracle classify category=%s confidence=%.2f", out.Category, out.Confidence)
	return out, nil
}

// CompareImages asks the oracle whether two photos show the same issue.
func (c *Client) CompareImages(ctx context.Context, a, b Image) (Comparison, error) {
	var out Comparison
	err := c.call(ctx, "compare", comparePrompt, []Image{a, b}, &out)
	if err != nil {
		return Comparison{}, err
	}
	log.Printf("oracle compare same_issue=%t confidence=%.2f", out.SameIssue, out.Confidence)
	return out, nil
}

func (c *Client) call(ctx context.Context, operation, prompt string, images []Image, dest any) error {
	return c.retry.Do(ctx, operation, func(attemptCtx context.Context) error {
		// Every attempt is a provider request; waiting for window room is
		// bounded by the parent context, not the attempt timeout.
		if c.limiter != nil {
			if err := c.limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		text, err := c.transport.complete(attemptCtx, prompt, images)
		if err != nil {
			return err
		}
		return decodeResponse(text, dest)
	})
}
