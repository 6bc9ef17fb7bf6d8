// Package gateway wraps a single call to the text-generation backend behind a
// uniform option surface and reports the tokens each call consumed.
package gateway

import (
	"context"
	"strings"
)

// Credential is the per-invocation API key. It is passed explicitly and never
// read from process-global state by the core.
type Credential struct {
	APIKey string
}

func (c Credential) Empty() bool {
	return strings.TrimSpace(c.APIKey) == ""
}

type Options struct {
	Model            string
	Temperature      float32
	StructuredOutput bool
	MaxOutputTokens  int32 // 0 leaves the backend default
}

type Request struct {
	System  string
	User    string
	Options Options
}

type Response struct {
	Content   string
	Tokens    int
	Truncated bool // the backend stopped at the output token cap
}

// Invoker performs one blocking backend call.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Client is an Invoker bound to one credential.
type Client interface {
	Invoker
	// ValidateCredential issues a minimal backend call. The message tells a
	// missing or rejected key apart from other transport failures.
	ValidateCredential(ctx context.Context) (bool, string)
	Close() error
}

// Dialer builds a Client for a credential. Hosts call it once per request.
type Dialer func(ctx context.Context, cred Credential) (Client, error)
