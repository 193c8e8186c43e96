package sequence

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalGeneratorFormat(t *testing.T) {
	g := NewLocalGenerator()

	txn, err := g.NextTransactionCode(context.Background(), "brand-1")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^TXN-\d{6}-[0-9A-F]{6}$`), txn)

	spin, err := g.NextSpinCode(context.Background(), "brand-1")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^SPN-\d{6}-[0-9A-F]{6}$`), spin)
}

func TestLocalGeneratorUnique(t *testing.T) {
	g := NewLocalGenerator()

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		code, err := g.NextTransactionCode(context.Background(), "brand-1")
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
