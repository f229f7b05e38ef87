package header

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// HeaderLexer tokenizes the subset of C found in generated NiFpga headers.
// Preprocessor lines switch into the Directive state so the grammar can see
// where each one ends.
var HeaderLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		lexer.Include("Common"),
		{Name: "Hash", Pattern: `#`, Action: lexer.Push("Directive")},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "Punct", Pattern: `[^\sA-Za-z0-9_"]`},
	},
	"Directive": {
		{Name: "EOL", Pattern: `\r?\n`, Action: lexer.Pop()},
		{Name: "Continuation", Pattern: `\\\r?\n`},
		{Name: "Space", Pattern: `[ \t\r]+`},
		lexer.Include("Common"),
		{Name: "Punct", Pattern: `[^\sA-Za-z0-9_"]`},
	},
	"Common": {
		// C comments, both styles
		{Name: "Comment", Pattern: `//[^\n]*|/\*([^*]|\*+[^*/])*\*+/`},

		{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

		// Hex or decimal with optional integer suffixes (0x18002, 4u, -1)
		{Name: "Number", Pattern: `0[xX][0-9a-fA-F]+[uUlL]*|-?[0-9]+[uUlL]*`},

		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	},
})
