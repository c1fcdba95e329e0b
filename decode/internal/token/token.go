package token

import (
	"fmt"
	"strings"
	"unicode"
)

type Type int

const (
	LParen Type = iota
	RParen
	Ident
	Number
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Ident:
		return "identifier"
	case Number:
		return "number"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Line  int
}

func (t Token) String() string {
	return fmt.Sprintf("%q at line %d", t.Value, t.Line)
}

// Tokenize splits a program listing into tokens. Line comments start with
// ";;", block comments are "(; ... ;)" and may nest.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	line := 1
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}

		if r == ';' {
			if i+1 >= len(runes) || runes[i+1] != ';' {
				return nil, fmt.Errorf("line %d: unexpected ';'", line)
			}
			for i+1 < len(runes) && runes[i+1] != '\n' {
				i++
			}
			continue
		}

		if r == '(' {
			if i+1 < len(runes) && runes[i+1] == ';' {
				start := line
				depth := 1
				i += 2
				for i < len(runes) && depth > 0 {
					switch {
					case runes[i] == '(' && i+1 < len(runes) && runes[i+1] == ';':
						depth++
						i++
					case runes[i] == ';' && i+1 < len(runes) && runes[i+1] == ')':
						depth--
						i++
					case runes[i] == '\n':
						line++
					}
					i++
				}
				if depth > 0 {
					return nil, fmt.Errorf("line %d: unterminated block comment", start)
				}
				i--
				continue
			}
			tokens = append(tokens, Token{"(", LParen, line})
			continue
		}

		if r == ')' {
			tokens = append(tokens, Token{")", RParen, line})
			continue
		}

		// Numbers, including signed inf and nan spellings.
		if r == '-' || r == '+' || unicode.IsDigit(r) {
			start := i
			if r == '-' || r == '+' {
				rest := string(runes[i+1 : min(i+4, len(runes))])
				if rest == "inf" || rest == "nan" {
					i += 4
					for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == ':' || runes[i] == '_') {
						i++
					}
					tokens = append(tokens, Token{string(runes[start:i]), Number, line})
					i--
					continue
				}
				i++
			}
			for i < len(runes) && numberRune(runes, i, start) {
				i++
			}
			if i == start+1 && (r == '-' || r == '+') {
				return nil, fmt.Errorf("line %d: dangling sign", line)
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, line})
			i--
			continue
		}

		// Mnemonics, type names and $labels.
		if r == '$' || unicode.IsLetter(r) || r == '_' {
			start := i
			for i < len(runes) {
				c := runes[i]
				if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' || c == '$' || c == '-' || c == ':' {
					i++
				} else {
					break
				}
			}
			value := string(runes[start:i])
			typ := Ident
			if value == "inf" || value == "nan" || strings.HasPrefix(value, "nan:") {
				typ = Number
			}
			tokens = append(tokens, Token{value, typ, line})
			i--
			continue
		}

		return nil, fmt.Errorf("line %d: unexpected character %q", line, r)
	}

	return tokens, nil
}

func numberRune(runes []rune, i, start int) bool {
	c := runes[i]
	switch {
	case unicode.IsDigit(c), c == '.', c == '_', c == 'x', c == 'X', c == 'p', c == 'P':
		return true
	case (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F'):
		return true
	case c == '-' || c == '+':
		prev := runes[i-1]
		return i > start && (prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P')
	}
	return false
}
