package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageRequestNormalize(t *testing.T) {
	p := PageRequest{}.Normalize()
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.Limit)

	p = PageRequest{Page: -3, Limit: 1000}.Normalize()
	require.Equal(t, 1, p.Page)
	require.Equal(t, 200, p.Limit)

	p = PageRequest{Page: 4, Limit: 25}.Normalize()
	require.Equal(t, 75, p.Skip())
}

func TestNewPagination(t *testing.T) {
	meta := NewPagination(PageRequest{Page: 2, Limit: 10}, 57)
	require.Equal(t, Pagination{Total: 57, Page: 2, Limit: 10}, meta)

	meta = NewPagination(PageRequest{}, 0)
	require.Equal(t, Pagination{Total: 0, Page: 1, Limit: 20}, meta)
}
