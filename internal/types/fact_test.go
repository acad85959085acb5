package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactString(t *testing.T) {
	fact := Fact{
		Predicate: "issue",
		Args: []interface{}{
			MangleAtom("/todo_marker"),
			"pkg/a.go",
			42,
			true,
		},
	}
	assert.Equal(t, `issue(/todo_marker, "pkg/a.go", 42, /true)`, fact.String())
}

func TestFactToAtomConversion(t *testing.T) {
	fact := Fact{
		Predicate: "quality_score",
		Args: []interface{}{
			MangleAtom("/file_entry"),
			"pkg/a.go",
			12,
			int64(5),
			0.42,
			101.0,
			true,
			false,
		},
	}

	atom, err := fact.ToAtom()
	require.NoError(t, err)
	assert.Equal(t, "quality_score", atom.Predicate.Symbol)
	require.Len(t, atom.Args, 8)
}

func TestFactToAtomRejectsMalformedNameConstant(t *testing.T) {
	fact := Fact{Predicate: "bad", Args: []interface{}{"/bad//name"}}
	_, err := fact.ToAtom()
	assert.Error(t, err)
}
