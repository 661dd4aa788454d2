package compiler

// Compile runs the whole pipeline over src. A structural defect is returned
// as a *BracketError and no assembly is produced.
func Compile(src string, opts Options) (string, Stats, error) {
	if err := opts.Validate(); err != nil {
		return "", Stats{}, err
	}

	tokens := Lex(src)
	if err := Validate(tokens); err != nil {
		return "", Stats{}, err
	}

	assembly, stats := Generate(tokens, opts)
	return assembly, stats, nil
}
