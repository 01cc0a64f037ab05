package nutprotocol

import (
	"regexp"
	"strings"
)

// ExtractStrategy recovers a value from a response line that carries no
// quoted segment.
type ExtractStrategy func(line string) string

// LastWord returns the last whitespace-delimited token of line. It is the
// default unquoted strategy: upsd puts bare values (NETVER, LIST CMD) at the
// end of the line. A multi-word unquoted value loses all but its last word.
func LastWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// ValueParser extracts values from framed responses.
type ValueParser struct {
	quotedRegex *regexp.Regexp
	unquoted    ExtractStrategy
}

// upsd escapes '"' and '\' inside quoted values with a backslash.
var (
	quotedPattern  = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	escapedPattern = regexp.MustCompile(`\\(.)`)
)

func unescapeQuoted(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return escapedPattern.ReplaceAllString(s, "$1")
}

// NewValueParser creates a parser using LastWord for unquoted lines.
func NewValueParser() *ValueParser {
	return NewValueParserWithStrategy(LastWord)
}

// NewValueParserWithStrategy creates a parser with a custom unquoted strategy.
func NewValueParserWithStrategy(unquoted ExtractStrategy) *ValueParser {
	if unquoted == nil {
		unquoted = LastWord
	}
	return &ValueParser{
		quotedRegex: quotedPattern,
		unquoted:    unquoted,
	}
}

// HasQuotedValue reports whether line contains a double quote.
func (p *ValueParser) HasQuotedValue(line string) bool {
	return strings.Contains(line, `"`)
}

// ExtractQuotedValue returns the text between the first pair of double
// quotes. Escaped quotes do not end the value and lose their backslash.
func (p *ValueParser) ExtractQuotedValue(line string) (string, bool) {
	match := p.quotedRegex.FindStringSubmatch(line)
	if len(match) < 2 {
		return "", false
	}
	return unescapeQuoted(match[1]), true
}

// ExtractQuotedValues returns the text of every quoted segment in order.
// LIST RANGE lines carry two.
func (p *ValueParser) ExtractQuotedValues(line string) []string {
	matches := p.quotedRegex.FindAllStringSubmatch(line, -1)
	values := make([]string, 0, len(matches))
	for _, m := range matches {
		values = append(values, unescapeQuoted(m[1]))
	}
	return values
}

// ExtractPropertyKey drops the quoted segment and the space before it, then
// returns the last token of what remains: the variable name in
// `VAR <ups> <name> "<value>"`.
func (p *ValueParser) ExtractPropertyKey(line string) string {
	idx := strings.Index(line, `"`)
	if idx < 0 {
		return LastWord(line)
	}
	return LastWord(line[:idx])
}

// ExtractUnquotedValue applies the parser's unquoted strategy.
func (p *ValueParser) ExtractUnquotedValue(line string) string {
	return p.unquoted(line)
}

// IsServerBanner reports whether text is the VER banner.
func IsServerBanner(text string) bool {
	if !strings.Contains(text, ServerBannerMarker) {
		return false
	}
	for _, url := range ProjectURLs {
		if strings.Contains(text, url) {
			return true
		}
	}
	return false
}

// StripServerBanner removes the trailing " - <url>" from a VER banner.
func StripServerBanner(text string) string {
	for _, url := range ProjectURLs {
		if idx := strings.Index(text, " - "+url); idx >= 0 {
			return text[:idx]
		}
	}
	return text
}

// ParseScalar extracts a single value from a framed response: the quoted
// segment if any, the banner without its URL for VER, otherwise the result
// of the unquoted strategy.
func (p *ValueParser) ParseScalar(raw RawResponse) (string, error) {
	text := raw.Text()
	if strings.TrimSpace(text) == "" {
		return "", newUnexpectedResponseError("empty response")
	}

	if p.HasQuotedValue(text) {
		value, ok := p.ExtractQuotedValue(text)
		if !ok {
			return "", newUnexpectedResponseError(text)
		}
		return value, nil
	}

	if IsServerBanner(text) {
		return StripServerBanner(text), nil
	}

	return p.ExtractUnquotedValue(text), nil
}

// ParseList folds every line of a framed list response into a ListResponse.
// Quoted lines become keyed entries, unquoted lines positional values. A
// HELP reply short-circuits to ListCommands.
func (p *ValueParser) ParseList(raw RawResponse) ListResponse {
	var resp ListResponse
	first := true

	for _, line := range raw.Lines {
		if line == "" || strings.HasPrefix(line, ListBegin) || strings.HasPrefix(line, ListEnd) {
			continue
		}

		if first && strings.Contains(line, HelpPrefix) {
			return ListResponse{Kind: ListCommands, Commands: parseHelpLine(line)}
		}
		first = false

		if p.HasQuotedValue(line) {
			value, _ := p.ExtractQuotedValue(line)
			resp.Entries = append(resp.Entries, Entry{
				Key:   p.ExtractPropertyKey(line),
				Value: value,
			})
			continue
		}
		resp.Values = append(resp.Values, p.ExtractUnquotedValue(line))
	}

	if len(resp.Entries) > 0 {
		resp.Kind = ListMapping
	} else {
		resp.Kind = ListSequence
	}
	return resp
}

// parseHelpLine splits "Commands: HELP VER ..." into command names.
func parseHelpLine(line string) []string {
	idx := strings.Index(line, HelpPrefix)
	return strings.Fields(line[idx+len(HelpPrefix):])
}
