package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldKeyword(t *testing.T) {
	cases := map[string]string{
		"Pérez":         "perez",
		"  JOSÉ MARÍA ": "jose maria",
		"Ñandú":         "nandu",
		"ferretería":    "ferreteria",
		"plain":         "plain",
		"":              "",
	}
	for in, want := range cases {
		require.Equal(t, want, FoldKeyword(in), "input %q", in)
	}
}
