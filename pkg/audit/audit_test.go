package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T, n int) []Entry {
	t.Helper()
	base := time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)
	entries := make([]Entry, n)
	prev := ""
	for i := range entries {
		entries[i] = Entry{
			ID:        string(rune('a' + i)),
			UserID:    int64(i + 1),
			Action:    ActionTaskCreated,
			Details:   "task",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		Seal(&entries[i], prev)
		prev = entries[i].Hash
	}
	return entries
}

func TestComputeHash(t *testing.T) {
	e := Entry{ID: "id1", UserID: 1, Action: "x", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	h1 := computeHash(&e)
	h2 := computeHash(&e)
	assert.Equal(t, h1, h2, "same inputs should produce same hash")

	other := e
	other.ID = "id2"
	assert.NotEqual(t, h1, computeHash(&other), "different ID should produce different hash")

	linked := e
	linked.PrevHash = "prevhash"
	assert.NotEqual(t, h1, computeHash(&linked), "different prevHash should produce different hash")

	withIP := e
	withIP.IPAddress = "10.0.0.1"
	assert.NotEqual(t, h1, computeHash(&withIP))
}

func TestVerify(t *testing.T) {
	entries := chain(t, 4)
	require.NoError(t, Verify(entries))
	require.NoError(t, Verify(nil))

	tampered := chain(t, 4)
	tampered[2].Details = "edited"
	assert.ErrorContains(t, Verify(tampered), "entry 2")
	assert.ErrorIs(t, Verify(tampered), ErrBrokenChain)

	relinked := chain(t, 4)
	relinked = append(relinked[:1], relinked[2:]...)
	assert.ErrorContains(t, Verify(relinked), "prev_hash mismatch")
}
