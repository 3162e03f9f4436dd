// Package sql parses the SQL subset the engine executes: CREATE TABLE,
// INSERT INTO ... VALUES, and SELECT with an optional single-column
// equality filter. The grammar is deliberately small; anything outside it
// is a parse error, not undefined behavior.
package sql

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Statement is one parsed SQL statement.
//
//nolint:govet // participle grammar tags are not standard struct tags
type Statement struct {
	Create *CreateTable `  @@`
	Insert *Insert      `| @@`
	Select *Select      `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type CreateTable struct {
	Name    string       `"CREATE" "TABLE" @Ident`
	Columns []*ColumnDef `"(" @@ ("," @@)* ")"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type ColumnDef struct {
	Name       string `@Ident`
	Type       string `@("INTEGER" | "REAL" | "TEXT" | "BLOB")`
	PrimaryKey bool   `@("PRIMARY" "KEY")?`
	NotNull    bool   `@("NOT" "NULL")?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type Insert struct {
	Table   string   `"INSERT" "INTO" @Ident`
	Columns []string `("(" @Ident ("," @Ident)* ")")?`
	Rows    []*Tuple `"VALUES" @@ ("," @@)*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type Tuple struct {
	Values []*Literal `"(" @@ ("," @@)* ")"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type Select struct {
	Projection *Projection `"SELECT" @@`
	Table      string      `"FROM" @Ident`
	Where      *Where      `("WHERE" @@)?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type Projection struct {
	Star    bool     `  @"*"`
	Columns []string `| @Ident ("," @Ident)*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type Where struct {
	Column string   `@Ident`
	Value  *Literal `"=" @@`
}

// Literal is a literal value in an INSERT tuple or WHERE clause. String
// and Blob hold the raw token including quotes; use Unquote and BlobBytes.
//
//nolint:govet // participle grammar tags are not standard struct tags
type Literal struct {
	Null   bool    `  @"NULL"`
	String *string `| @String`
	Number *string `| @Number`
	Blob   *string `| @Blob`
}

// IsFloat reports whether a Number literal carries a fractional part.
func (l *Literal) IsFloat() bool {
	return l.Number != nil && strings.Contains(*l.Number, ".")
}

// Unquote strips the surrounding quotes from a String literal and folds
// doubled quotes.
func (l *Literal) Unquote() string {
	if l.String == nil {
		return ""
	}
	s := *l.String
	s = s[1 : len(s)-1]
	return strings.ReplaceAll(s, "''", "'")
}

// BlobBytes decodes an x'...' hex literal.
func (l *Literal) BlobBytes() ([]byte, error) {
	if l.Blob == nil {
		return nil, fmt.Errorf("sql: not a blob literal")
	}
	s := *l.Blob
	s = s[2 : len(s)-1]
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("sql: bad blob literal: %w", err)
	}
	return b, nil
}

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Blob must precede Ident so x'..' is not lexed as the identifier "x".
	{Name: "Blob", Pattern: `[xX]'[0-9a-fA-F]*'`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[(),*=;]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[Statement](
	participle.Lexer(sqlLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Ident"),
)

// Parse compiles one SQL statement into its AST. A trailing semicolon is
// accepted and ignored.
func Parse(input string) (*Statement, error) {
	input = strings.TrimRight(strings.TrimSpace(input), ";")
	stmt, err := parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("sql: parse error: %w", err)
	}
	return stmt, nil
}
