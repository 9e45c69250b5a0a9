// Package parse recovers structured data from loosely formatted model output.
//
// Chat models frequently wrap JSON in markdown fences, prepend commentary, or
// emit Python-flavored literals. Robust applies a cascading recovery chain and
// never fails: direct parse, fence stripping, balanced-brace extraction,
// syntax repair, then the caller-supplied fallback.
package parse

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var (
	fenceOpenRe    = regexp.MustCompile("(?m)^```(?:json)?\\s*")
	fenceCloseRe   = regexp.MustCompile("(?m)\\s*```$")
	singleQuoteRe  = regexp.MustCompile(`'([^']*)'\s*:`)
	singleQuoteVal = regexp.MustCompile(`:\s*'([^']*)'`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe  = regexp.MustCompile(`([{,]\s*)(\w+)\s*:`)
	pythonTrueRe   = regexp.MustCompile(`\bTrue\b`)
	pythonFalseRe  = regexp.MustCompile(`\bFalse\b`)
	pythonNoneRe   = regexp.MustCompile(`\bNone\b`)
)

// Robust parses raw model output into dst (a pointer to a JSON-decodable
// value). It returns true when one of the recovery steps produced a decode,
// false when the caller should fall back to defaults. It never returns an
// error; failures are logged and swallowed.
func Robust(raw string, context string, dst any) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		slog.Debug("parse.Robust: empty response", "context", context)
		return false
	}

	if json.Unmarshal([]byte(trimmed), dst) == nil {
		return true
	}

	cleaned := Clean(trimmed)
	if cleaned != trimmed && json.Unmarshal([]byte(cleaned), dst) == nil {
		slog.Debug("parse.Robust: recovered after cleanup", "context", context)
		return true
	}

	if extracted := ExtractObject(cleaned); extracted != "" {
		if json.Unmarshal([]byte(extracted), dst) == nil {
			slog.Debug("parse.Robust: recovered via brace extraction", "context", context)
			return true
		}
		if fixed := FixSyntax(extracted); fixed != "" && json.Unmarshal([]byte(fixed), dst) == nil {
			slog.Debug("parse.Robust: recovered via syntax repair", "context", context)
			return true
		}
	}

	if fixed := FixSyntax(cleaned); fixed != "" && json.Unmarshal([]byte(fixed), dst) == nil {
		slog.Debug("parse.Robust: recovered via syntax repair", "context", context)
		return true
	}

	preview := trimmed
	if len(preview) > 200 {
		preview = preview[:200]
	}
	slog.Warn("parse.Robust: all recovery steps failed", "context", context, "preview", preview)
	return false
}

// Clean strips markdown fences and commentary surrounding the first JSON
// object in the text.
func Clean(text string) string {
	text = fenceOpenRe.ReplaceAllString(text, "")
	text = fenceCloseRe.ReplaceAllString(text, "")

	// Drop any prefix before the first opening brace.
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		if idx := strings.Index(text, "{"); idx > 0 {
			text = text[idx:]
		}
	}

	// Drop any suffix after the last closing brace.
	if last := strings.LastIndex(text, "}"); last != -1 {
		if strings.TrimSpace(text[last+1:]) != "" {
			text = text[:last+1]
		}
	}

	return strings.TrimSpace(text)
}

// ExtractObject returns the first balanced {...} region in the text, or "".
func ExtractObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// FixSyntax repairs common model-output JSON defects: single-quoted keys,
// trailing commas, unquoted keys and Python literals. Returns "" when no
// change was made.
func FixSyntax(text string) string {
	if text == "" {
		return ""
	}
	fixed := singleQuoteRe.ReplaceAllString(text, `"$1":`)
	fixed = singleQuoteVal.ReplaceAllString(fixed, `: "$1"`)
	fixed = trailingComma.ReplaceAllString(fixed, "$1")
	fixed = unquotedKeyRe.ReplaceAllString(fixed, `$1"$2":`)
	fixed = pythonTrueRe.ReplaceAllString(fixed, "true")
	fixed = pythonFalseRe.ReplaceAllString(fixed, "false")
	fixed = pythonNoneRe.ReplaceAllString(fixed, "null")
	if fixed == text {
		return ""
	}
	return fixed
}
