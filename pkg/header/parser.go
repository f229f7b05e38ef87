package header

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/alecthomas/participle/v2"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

var headerParser = participle.MustBuild[translationUnit](
	participle.Lexer(HeaderLexer),
	participle.Elide("Comment", "Whitespace", "Space", "Continuation"),
	participle.UseLookahead(32),
)

var headerName = regexp.MustCompile(`^NiFpga_(\w+)\.h$`)

// InterfaceFromPath returns <Name> for a path ending in NiFpga_<Name>.h.
func InterfaceFromPath(path string) (string, bool) {
	m := headerName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Parse parses a header from r. filename is used in error positions and,
// when it has the NiFpga_<Name>.h form, to set File.Interface.
func Parse(filename string, r io.Reader) (*File, error) {
	tu, err := headerParser.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return newFile(filename, tu), nil
}

// ParseString parses a header held in memory.
func ParseString(filename, src string) (*File, error) {
	tu, err := headerParser.ParseString(filename, src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return newFile(filename, tu), nil
}

// ParseFile parses the header at path.
func ParseFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(path, file)
}

func newFile(filename string, tu *translationUnit) *File {
	f := &File{Decls: tu.Decls}
	if name, ok := InterfaceFromPath(filename); ok {
		f.Interface = name
	}
	return f
}

// Load parses the header at path and builds its catalog.
func Load(path string) (*rio.Catalog, error) {
	f, err := ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("header: %s: %w", path, err)
	}
	c, err := Build(f, "")
	if err != nil {
		return nil, fmt.Errorf("header: %s: %w", path, err)
	}
	return c, nil
}
