// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX models) and any OpenAI-compatible
// embeddings API. Factory pattern enables provider selection at runtime
// with automatic dimension detection for common models.
package embeddings
