// Package telegram provides the Bot API transport boundary for the
// notification engine.
//
// Bot wraps a telebot client with a token-bucket rate limiter so bulk
// delivery stays under the Bot API's global send budget (~30 msgs/sec for a
// bot; the default here is a conservative 20/sec). Exceeding the budget
// surfaces as a RateLimitedError carrying the server-specified backoff.
//
// Message bodies are HTML. SanitizeHTML reduces arbitrary markup to the tag
// subset the Bot API accepts; anything else is stripped (markup removed,
// inner text kept), never escaped.
package telegram
