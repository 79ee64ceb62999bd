// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/resume-optimizer/internal/llm"
)

// Client returns queued replies in order and records every request.
// GenerateFunc, when set, takes precedence over the queue.
type Client struct {
	mu           sync.Mutex
	replies      []Reply
	Requests     []*llm.Request
	GenerateFunc func(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Reply is one scripted outcome.
type Reply struct {
	Text   string
	Tokens int
	Err    error
}

// New returns a client that answers with replies in order.
func New(replies ...Reply) *Client {
	return &Client{replies: replies}
}

// JSON is a Reply with the given body and token count.
func JSON(body string, tokens int) Reply {
	return Reply{Text: body, Tokens: tokens}
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	c.Requests = append(c.Requests, req)
	fn := c.GenerateFunc
	var reply Reply
	var ok bool
	if fn == nil && len(c.replies) > 0 {
		reply, c.replies, ok = c.replies[0], c.replies[1:], true
	}
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if !ok {
		return nil, fmt.Errorf("llmtest: no scripted reply for call %d", c.Calls())
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	resp := &llm.Response{Text: reply.Text, Model: req.Model}
	if reply.Tokens > 0 {
		resp.Usage = &llm.Usage{TotalTokens: reply.Tokens}
	}
	return resp, nil
}

// Calls returns how many requests were made.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Close implements llm.Client.
func (c *Client) Close() error { return nil }
