// Package classifier assigns one of the fixed email categories to a message
// using a single-turn chat completion.
//
// The model is asked to answer with a category number. The first digit found
// anywhere in the reply is used, so answers such as "Category: 3" still
// parse. The transport is injected as a Completer; OpenAICompleter talks to
// any OpenAI-compatible endpoint and defaults to Groq.
package classifier
