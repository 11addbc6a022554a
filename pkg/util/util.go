package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/token"
)

// Output receives every diagnostic.
var Output io.Writer = os.Stderr

var exit = os.Exit

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// SetSourceFiles stores the source of every input for rich diagnostics.
func SetSourceFiles(files []SourceFileRecord) { sourceFiles = files }

func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "bfc", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line of tok with a caret under it.
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}

	content := sourceFiles[tok.FileIndex].Content
	lineStart, line := 0, 1
	for i, r := range content {
		if line == tok.Line {
			break
		}
		if r == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))
	fmt.Fprintf(w, "  %s\033[32m^", strings.Repeat(" ", max(tok.Column-1, 0)))
	if tok.Len > 1 {
		fmt.Fprint(w, strings.Repeat("~", tok.Len-1))
	}
	fmt.Fprintln(w, "\033[0m")
}

func location(tok token.Token) string {
	filename, line, col := findFileAndLine(tok)
	if line == 0 {
		return filename
	}
	return fmt.Sprintf("%s:%d:%d", filename, line, col)
}

// Error prints a formatted error message pointing at tok and exits.
func Error(tok token.Token, format string, args ...interface{}) {
	fmt.Fprintf(Output, "%s: \033[31merror:\033[0m ", location(tok))
	fmt.Fprintf(Output, format, args...)
	fmt.Fprintln(Output)
	printErrorLine(Output, tok)
	exit(1)
}

// Warn prints a warning when wt is enabled in cfg.
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	fmt.Fprintf(Output, "%s: \033[33mwarning:\033[0m ", location(tok))
	fmt.Fprintf(Output, format, args...)
	fmt.Fprintf(Output, " [-W%s]\n", cfg.Warnings[wt].Name)
	printErrorLine(Output, tok)
}

func Info(format string, args ...interface{}) {
	fmt.Fprintf(Output, "bfc: info: "+format+"\n", args...)
}
