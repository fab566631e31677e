// Package search implements the three query engines over the index: lexical
// (exact term and regex hits with capped counts and a length penalty),
// semantic (query embedding against summary vectors), and hybrid (both
// channels run concurrently, fused by weighted score with reciprocal rank
// fusion breaking ties). Every engine returns fully deterministic orderings
// for identical inputs.
package search
