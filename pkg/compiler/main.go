// Package compiler translates tape-machine programs (the eight symbols
// > < + - . , [ ]) into NASM x86-64 Linux assembly.
//
// Pipeline: source → Lex → Validate → Generate → assembly text
package compiler
