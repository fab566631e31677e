// Package embedder converts batches of text into fixed-dimension vectors via
// an external embedding provider.
//
// # Basic Usage
//
//	client, err := embedder.NewOpenAI(apiKey, embedder.WithModel("text-embedding-3-small"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := client.EmbedTexts(ctx, texts)
//
// # Batching
//
// Inputs larger than BatchCeiling (2048 texts) are split into sequential
// sub-batches; results are concatenated in original order. Batches are
// intentionally not dispatched in parallel because output alignment with the
// input slice is the contract.
//
// # Retry
//
// Transient failures (rate limits, timeouts) are retried with exponential
// backoff and jitter per an injectable Policy: delay = base * 2^attempt +
// jitter, capped at a maximum. Auth and malformed-request failures surface
// immediately. After retries are exhausted the error is reported as
// ErrProvider.
//
// # Validation
//
// Responses are validated for cardinality (ErrCountMismatch) and, for models
// present in the injected dimension table, for vector length
// (ErrDimensionMismatch). Unrecognized models skip dimension validation so new
// provider models keep working.
package embedder
