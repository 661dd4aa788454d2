package compiler

// Lex scans src and returns one Token per recognized symbol, in source order,
// each carrying its byte offset.
// Every other byte is a comment and is skipped. Lex cannot fail.
func Lex(src string) []Token {
	var tokens []Token
	for i := 0; i < len(src); i++ {
		if kind, ok := KindOf(src[i]); ok {
			tokens = append(tokens, Token{Kind: kind, Offset: i})
		}
	}
	return tokens
}
