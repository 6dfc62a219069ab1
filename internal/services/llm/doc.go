// Package llm provides an OpenRouter-compatible chat client and a
// priority router across backends.
//
// The assistant uses it to answer questions grounded in sermon segments.
// The doctor command uses HealthCheck to verify keys and models.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.Generate: send a prompt, receive text, backend name and tokens.
// Client.CompleteJSON: send system/user prompts, receive a JSON response.
// Client.HealthCheck: verify API key and model availability.
// NewRouterFromConfig: primary then secondary backend from config.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty content and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). Context cancellation aborts retries immediately.
//
// # Fallback
//
// The Router moves to the next configured backend when one fails and
// returns ErrNoBackend when none is configured. Callers decide what to
// return when every backend fails.
package llm
