package lang

import "strings"

type token struct {
	text string
	line int
	col  int
}

const punct = "(){},=+-*;<>!"

// scan splits source into whitespace-separated words and single punctuation
// tokens, tracking line:col for diagnostics. Two-character comparison
// operators (==, !=, <=, >=) are kept as one token. '#' starts a comment
// that runs to end of line.
func scan(source string) []token {
	var tokens []token
	var current strings.Builder
	line, col := 1, 1
	startCol := 1

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, token{text: current.String(), line: line, col: startCol})
			current.Reset()
		}
	}

	runes := []rune(source)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '#':
			flush()
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			i-- // newline handled on next iteration
		case c == '\n':
			flush()
			line++
			col = 1
			continue
		case c == ' ' || c == '\t' || c == '\r':
			flush()
			col++
		case strings.ContainsRune(punct, c):
			flush()
			if i+1 < len(runes) && runes[i+1] == '=' && (c == '=' || c == '!' || c == '<' || c == '>') {
				tokens = append(tokens, token{text: string(c) + "=", line: line, col: col})
				i++
				col += 2
				continue
			}
			tokens = append(tokens, token{text: string(c), line: line, col: col})
			col++
		default:
			if current.Len() == 0 {
				startCol = col
			}
			current.WriteRune(c)
			col++
		}
	}
	flush()
	return tokens
}
