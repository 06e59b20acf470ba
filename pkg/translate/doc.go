// Package translate maps between the two client-facing wire dialects: the
// bearer dialect (OpenAI-compatible chat completions) and the native
// dialect the upstream actually speaks. The dispatcher stays payload
// agnostic; handlers use this package to build native outbound bodies from
// bearer requests and to translate native responses, buffered or streamed,
// back into bearer shapes.
package translate
