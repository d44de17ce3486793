// File: internal/accounts/store_test.go
package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/purib/ipopilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleRoster = "\uFEFF" + `Name,Active,DP ID,Username,Password,CRN,PIN,Bank Name,Status,Available Banks
User One,yes,13700,user1,secret1,CRN1,1111,Global IME Bank,,
User Two,no,13700,user2,secret2,CRN2,2222,,,
User Three,yes,13900,user3,,CRN3,3333,NIC Asia,,Global IME Bank | NIC Asia Bank Ltd
`

func newTestStore(t *testing.T, contents string) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.csv")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
	s, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	return s, path
}

func TestStoreLoad(t *testing.T) {
	s, _ := newTestStore(t, sampleRoster)

	all := s.Accounts()
	require.Len(t, all, 3)

	assert.Equal(t, "User One", all[0].Name)
	assert.Equal(t, "13700", all[0].DPID, "BOM must not corrupt the header mapping")
	assert.True(t, all[0].Active)
	assert.False(t, all[1].Active)
	assert.Equal(t, []string{"Global IME Bank", "NIC Asia Bank Ltd"}, all[2].AvailableBanks)
}

func TestStoreActiveFiltersCredentials(t *testing.T) {
	s, _ := newTestStore(t, sampleRoster)

	active := s.Active()
	// user2 is inactive; user3 is active but has no password.
	require.Len(t, active, 1)
	assert.Equal(t, "user1", active[0].Username)
}

func TestStoreMissingFileStartsEmpty(t *testing.T) {
	s, _ := newTestStore(t, "")
	assert.Empty(t, s.Accounts())
}

func TestStoreDefaultsWithoutOptionalColumns(t *testing.T) {
	// No Active or Name data: accounts default to active, Name falls back
	// to the username.
	roster := "Username,Password,DP ID\nuser9,secret9,13600\n"
	s, _ := newTestStore(t, roster)

	all := s.Accounts()
	require.Len(t, all, 1)
	assert.True(t, all[0].Active)
	assert.Equal(t, "user9", all[0].Name)
}

func TestStoreSaveFormat(t *testing.T) {
	s, path := newTestStore(t, sampleRoster)
	require.NoError(t, s.SetAvailableBanks("user1", []string{"Nepal Bank", "NIC Asia Bank Ltd"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, ",True,", "active flag is written capitalized")
	assert.Contains(t, content, ",False,")
	assert.Contains(t, content, "Nepal Bank|NIC Asia Bank Ltd")
}

func TestStoreSetStatus(t *testing.T) {
	s, path := newTestStore(t, sampleRoster)

	require.NoError(t, s.SetStatus("user1", "credentials", true))
	require.NoError(t, s.SetStatus("user2", "pin", false))
	// Unknown usernames are ignored without error.
	require.NoError(t, s.SetStatus("ghost", "credentials", false))

	reloaded, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	all := reloaded.Accounts()
	assert.Equal(t, "OK", all[0].Status)
	assert.Equal(t, "Failed pin", all[1].Status)
}

func TestStoreSetAvailableBanks(t *testing.T) {
	s, path := newTestStore(t, sampleRoster)

	banks := []string{"Nepal Bank", "NIC Asia Bank Ltd"}
	require.NoError(t, s.SetAvailableBanks("user1", banks))

	reloaded, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, banks, reloaded.Accounts()[0].AvailableBanks)
}

func TestStoreAdd(t *testing.T) {
	s, _ := newTestStore(t, sampleRoster)

	err := s.Add(&domain.Account{Username: "user1"})
	assert.Error(t, err, "duplicate usernames must be rejected")

	require.NoError(t, s.Add(&domain.Account{
		Name: "User Four", Username: "user4", Active: true,
		DPID: "14000", Password: "secret4",
	}))
	assert.Len(t, s.Accounts(), 4)
}
