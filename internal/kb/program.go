package kb

import (
	"strings"

	"multipoly/internal/logging"
)

// Program text is newline-delimited records of the form
//
//	(predicate subject object)
//
// Tokens are separated by whitespace; a token wrapped in double quotes may
// contain spaces and has its quotes removed on load. Blank lines and lines
// starting with ";" or "//" are comments. Any other line that is not exactly
// one three-token record is skipped without error, so a bulk load of partly
// malformed input still loads every well-formed line.

// Adder is the write half of a Store.
type Adder interface {
	Add(subject, predicate, object string) error
}

type token struct {
	text   string
	quoted bool
}

// ParseProgram returns the triples of every well-formed record in text.
func ParseProgram(text string) []Triple {
	var triples []Triple
	for _, line := range strings.Split(text, "\n") {
		if t, ok := parseLine(line); ok {
			triples = append(triples, t)
		}
	}
	return triples
}

// LoadProgram parses text and adds each record to dst in order. Records the
// store refuses are logged and skipped. It returns the number of triples added.
func LoadProgram(dst Adder, text string) int {
	loaded := 0
	skipped := 0
	for n, line := range strings.Split(text, "\n") {
		t, ok := parseLine(line)
		if !ok {
			if !isComment(line) {
				skipped++
			}
			continue
		}
		if err := dst.Add(t.Subject, t.Predicate, t.Object); err != nil {
			logging.KernelWarn("program line %d: %v", n+1, err)
			continue
		}
		loaded++
	}
	logging.KernelDebug("program loaded: %d triples, %d malformed lines skipped", loaded, skipped)
	return loaded
}

func isComment(line string) bool {
	clean := strings.TrimSpace(line)
	return clean == "" || strings.HasPrefix(clean, ";") || strings.HasPrefix(clean, "//")
}

func parseLine(line string) (Triple, bool) {
	if isComment(line) {
		return Triple{}, false
	}
	tokens, ok := splitRecord(strings.TrimSpace(line))
	if !ok || len(tokens) != 3 {
		return Triple{}, false
	}
	for _, tok := range tokens {
		if tok.text == "" {
			return Triple{}, false
		}
	}
	return Triple{
		Predicate: tokens[0].text,
		Subject:   tokens[1].text,
		Object:    tokens[2].text,
	}, true
}

// splitRecord tokenizes "(a b "c d")". It fails on missing parentheses,
// unterminated quotes, nested parentheses and text glued to a quoted token.
func splitRecord(s string) ([]token, bool) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, false
	}
	body := s[1 : len(s)-1]

	var tokens []token
	for i := 0; i < len(body); {
		switch c := body[i]; {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '"':
			end := strings.IndexByte(body[i+1:], '"')
			if end < 0 {
				return nil, false
			}
			next := i + 1 + end + 1
			if next < len(body) && !isSpace(body[next]) {
				return nil, false
			}
			tokens = append(tokens, token{text: body[i+1 : i+1+end], quoted: true})
			i = next
		case c == '(' || c == ')':
			return nil, false
		default:
			start := i
			for i < len(body) && !isSpace(body[i]) {
				if body[i] == '(' || body[i] == ')' || body[i] == '"' {
					return nil, false
				}
				i++
			}
			tokens = append(tokens, token{text: body[start:i]})
		}
	}
	return tokens, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}
