package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/token"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevExit := Output, exit
	Output = &buf
	t.Cleanup(func() {
		Output, exit = prevOut, prevExit
		SetSourceFiles(nil)
	})
	return &buf
}

func TestErrorPointsAtToken(t *testing.T) {
	buf := capture(t)
	code := -1
	exit = func(c int) { code = c }
	SetSourceFiles([]SourceFileRecord{{Name: "a.bfs", Content: []rune("var a = 1;\nprint b;\n")}})

	Error(token.Token{Type: token.Ident, Value: "b", Line: 2, Column: 7, Len: 1}, "undefined: %s", "b")

	require.Equal(t, 1, code)
	require.Equal(t, "a.bfs:2:7: \033[31merror:\033[0m undefined: b\n  print b;\n        \033[32m^\033[0m\n", buf.String())
}

func TestWarnRespectsConfig(t *testing.T) {
	buf := capture(t)
	cfg := config.NewConfig()
	SetSourceFiles([]SourceFileRecord{{Name: "a.bfs", Content: []rune("var x = 300;")}})
	tok := token.Token{Type: token.Number, Line: 1, Column: 9, Len: 3}

	Warn(cfg, config.WarnOverflow, tok, "constant %d wraps to %d", 300, 44)
	require.Contains(t, buf.String(), "a.bfs:1:9: \033[33mwarning:\033[0m constant 300 wraps to 44 [-Woverflow]\n")
	require.Contains(t, buf.String(), "^~~")

	buf.Reset()
	cfg.SetWarning(config.WarnOverflow, false)
	Warn(cfg, config.WarnOverflow, tok, "silent")
	require.Empty(t, buf.String())
}

func TestInfoAndUnknownFile(t *testing.T) {
	buf := capture(t)
	exit = func(int) {}
	Info("using %s", "bfc.yaml")
	Error(token.Token{FileIndex: -1}, "no input files")
	require.Equal(t, "bfc: info: using bfc.yaml\nbfc: \033[31merror:\033[0m no input files\n", buf.String())
}
