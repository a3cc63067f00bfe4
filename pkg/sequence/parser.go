// Package sequence describes device programming sequences as small scripts
// and runs them on a jtag.Engine.
//
// A script is a list of statements, each ended by a newline or a semicolon.
// A statement never continues onto the next line:
//
//	# UltraScale+ configuration
//	reset trace
//	instruction 0x0b 6
//	clock 20000
//	bitstream
//	goto-reset
//
// Operations map one-to-one onto the engine: reset, idle, goto-reset,
// instruction <code> [<bits>], clock <cycles>, bitstream, idcode [<expect>]
// and the raw shift <bits> <tms> <tdi>. A trailing `trace` logs every shift
// of that statement.
package sequence

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ScriptLexer tokenizes sequence scripts.
var ScriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Number", Pattern: `0[xX][0-9a-fA-F_]+|0[bB][01_]+|0[oO][0-7_]+|[0-9][0-9_]*`},
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z0-9_-]*`},
	{Name: "Terminator", Pattern: `[\n;]`},
})

// Parser parses sequence scripts.
type Parser struct {
	parser *participle.Parser[Script]
}

// NewParser creates a new script parser.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[Script](
		participle.Lexer(ScriptLexer),
		participle.Elide("Comment", "Whitespace"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse parses and validates a script read from r. name is used in error
// positions.
func (p *Parser) Parse(name string, r io.Reader) (*Script, error) {
	// The final statement may omit its newline.
	s, err := p.parser.Parse(name, io.MultiReader(r, strings.NewReader("\n")))
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseString parses and validates a script held in a string.
func (p *Parser) ParseString(name, input string) (*Script, error) {
	s, err := p.parser.ParseString(name, input+"\n")
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseFile parses and validates the script at filename.
func (p *Parser) ParseFile(filename string) (*Script, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(filename, file)
}

//go:embed default.seq
var defaultSource string

// DefaultSource returns the text of the built-in UltraScale+ sequence.
func DefaultSource() string {
	return defaultSource
}

// Default parses the built-in UltraScale+ sequence.
func Default() (*Script, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	return p.ParseString("default.seq", defaultSource)
}
