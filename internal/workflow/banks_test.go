// File: internal/workflow/banks_test.go
package workflow

import (
	"testing"

	"github.com/purib/ipopilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchBank(t *testing.T) {
	options := []domain.SelectOption{
		{Text: "Nepal Bank", Value: "1"},
		{Text: "NIC Asia Bank Ltd", Value: "2"},
	}

	t.Run("variant spelling of nic asia matches", func(t *testing.T) {
		opt, matched, ok := MatchBank(options, "nic asia")
		require.True(t, ok)
		assert.True(t, matched)
		assert.Equal(t, "2", opt.Value)
	})

	t.Run("case-insensitive substring match", func(t *testing.T) {
		opt, matched, ok := MatchBank(options, "NEPAL bank")
		require.True(t, ok)
		assert.True(t, matched)
		assert.Equal(t, "1", opt.Value)
	})

	t.Run("no match falls back to first option", func(t *testing.T) {
		opt, matched, ok := MatchBank(options, "Everest Bank")
		require.True(t, ok)
		assert.False(t, matched)
		assert.Equal(t, "1", opt.Value)
	})

	t.Run("empty preference falls back to first option", func(t *testing.T) {
		opt, matched, ok := MatchBank(options, "")
		require.True(t, ok)
		assert.False(t, matched)
		assert.Equal(t, "1", opt.Value)
	})

	t.Run("nic asia rule merges both directions", func(t *testing.T) {
		opt, matched, ok := MatchBank(options, "NIC ASIA BANK LIMITED (formerly Bank of Asia)")
		require.True(t, ok)
		assert.True(t, matched)
		assert.Equal(t, "2", opt.Value)
	})

	t.Run("no options at all", func(t *testing.T) {
		_, _, ok := MatchBank(nil, "anything")
		assert.False(t, ok)
	})
}

func TestNormalizeBankText(t *testing.T) {
	assert.Equal(t, "Global IME Bank", NormalizeBankText("  Global   IME\nBank "))
	assert.Equal(t, "Sanima Bank", NormalizeBankText("Sanimá Bank"))
	assert.Equal(t, "NIC Asia Bank", NormalizeBankText("NIC Asia Bank नेपाल"))
	assert.Equal(t, "", NormalizeBankText("नेपाल"))
}
