package parser

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"jobshell/internal/command"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	cases := []struct {
		input      string
		want       string
		continues  int
		wantNilEOF bool
	}{
		{input: "ls -l\n", want: "ls -l"},
		{input: "\n", want: ""},
		{input: "echo a\\\nb\n", want: "echo ab", continues: 1},
		{input: "echo 'a\nb'\n", want: "echo 'a\nb'", continues: 1},
		{input: "", wantNilEOF: true},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			var prompts bytes.Buffer
			got := Read(bufio.NewScanner(strings.NewReader(tc.input)), &prompts)

			if tc.wantNilEOF {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, string(got))
			assert.Equal(t, strings.Repeat("> ", tc.continues), prompts.String())
		})
	}
}

func TestParse(t *testing.T) {
	chain, first, second, err := ParseLine(`echo "a b" | wc -c && ls || echo fail`)
	require.NoError(t, err)

	require.Len(t, chain, 4)
	assert.Equal(t, []string{"echo", "a b"}, chain[0].Words)
	assert.Equal(t, command.Pipe, chain[0].Op)
	assert.Equal(t, command.And, chain[1].Op)
	assert.Equal(t, command.Or, chain[2].Op)
	assert.Equal(t, command.None, chain[3].Op)

	assert.Equal(t, command.Pipe, first)
	assert.Equal(t, command.And, second)
}

func TestParseMixedFlags(t *testing.T) {
	_, first, second, err := ParseLine("false && true || true && echo x")
	require.NoError(t, err)
	assert.Equal(t, command.And, first)
	assert.Equal(t, command.Or, second)
}

func TestParseTrailingOperators(t *testing.T) {
	chain, first, _, err := ParseLine("sleep 5 &")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, command.Background, chain[0].Op)
	assert.Equal(t, command.Background, first)

	chain, _, _, err = ParseLine("ls ;")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, command.None, chain[0].Op)
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{"| ls", "ls &&", "echo >", "ls | | wc", `echo "open`} {
		t.Run(line, func(t *testing.T) {
			_, _, _, err := ParseLine(line)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	chain, first, second, err := ParseLine("   ")
	require.NoError(t, err)
	assert.Empty(t, chain)
	assert.Equal(t, command.None, first)
	assert.Equal(t, command.None, second)
}
