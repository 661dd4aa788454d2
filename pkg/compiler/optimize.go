package compiler

// runLength counts how many tokens starting at pos share the kind of
// tokens[pos]. It always returns at least 1.
func runLength(tokens []Token, pos int) int {
	kind := tokens[pos].Kind
	n := 1
	for pos+n < len(tokens) && tokens[pos+n].Kind == kind {
		n++
	}
	return n
}

// splitRun breaks a run of n identical operations into chunks no larger than
// maxRun, so a counted instruction never overflows its immediate.
func splitRun(n, maxRun int) []int {
	if maxRun < 1 {
		maxRun = 1
	}
	chunks := make([]int, 0, n/maxRun+1)
	for n > 0 {
		c := min(n, maxRun)
		chunks = append(chunks, c)
		n -= c
	}
	return chunks
}
