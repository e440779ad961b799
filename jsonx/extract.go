// Package jsonx recovers JSON from free-form model output.
//
// Extract and ExtractPartial only slice text between braces; their result is a
// candidate for Parse or ParsePartial, never guaranteed-valid JSON.
package jsonx

import "strings"

// Extract returns the text from the first '{' to the last '}' inclusive,
// or "" when either brace is missing.
func Extract(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return ""
	}
	return text[start : end+1]
}

// ExtractPartial is Extract for an in-flight stream: when no '}' follows the
// first '{', end of text stands in for the closing brace. No brace is synthesized.
func ExtractPartial(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}
