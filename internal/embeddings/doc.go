// Package embeddings turns ticket text into fixed-dimension vectors.
//
// Two providers are supported: the OpenAI embeddings API (default, model
// text-embedding-3-small with dimensions=512) and a Text Embeddings Inference
// server. NewClient selects one from configuration and wraps it in a Service
// that enforces the input limit, the per-call deadline, and the output
// dimension.
//
// Every failure is an *errkind.Error: EmptyInput, InputTooLarge,
// EmbeddingUnavailable, or TimeoutExceeded. Nothing is retried or cached.
package embeddings
