package cards

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
)

// TestNewCatalogValidations covers the rejection paths for bad definitions.
func TestNewCatalogValidations(t *testing.T) {
	_, err := NewCatalog(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog has no cards")

	_, err = NewCatalog([]Card{{Name: "No ID", Type: "W"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card 0 has no id")

	_, err = NewCatalog([]Card{{ID: "X1", Name: "Bad Type", Type: "Z"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `card X1 has invalid type "Z"`)

	_, err = NewCatalog([]Card{
		{ID: "W001", Name: "First", Type: "W"},
		{ID: "W001", Name: "Second", Type: "W"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate card id W001")
}

// TestNewCatalogDefaultsCopies verifies a missing copy count means one copy.
func TestNewCatalogDefaultsCopies(t *testing.T) {
	catalog, err := NewCatalog([]Card{{ID: "W001", Name: "Solo", Type: "W"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"W001"}, catalog.IDsByType(game.CardTypeWork))
}

// TestCatalogGet verifies lookup by id.
func TestCatalogGet(t *testing.T) {
	catalog, err := NewCatalog([]Card{{ID: "B001", Name: "Loan", Type: "B"}})
	require.NoError(t, err)

	card, ok := catalog.Get("B001")
	require.True(t, ok)
	assert.Equal(t, "Loan", card.Name)

	_, ok = catalog.Get("B999")
	assert.False(t, ok)
}

// TestIDsByTypeExpandsCopies verifies decks expand per copy count in catalog
// order.
func TestIDsByTypeExpandsCopies(t *testing.T) {
	catalog, err := NewCatalog([]Card{
		{ID: "W001", Name: "First", Type: "W", Copies: 3},
		{ID: "W002", Name: "Second", Type: "W", Copies: 2},
		{ID: "B001", Name: "Other Deck", Type: "B"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"W001", "W001", "W001", "W002", "W002"}, catalog.IDsByType(game.CardTypeWork))
	assert.Equal(t, []string{"B001"}, catalog.IDsByType(game.CardTypeBank))
	assert.Empty(t, catalog.IDsByType(game.CardTypeLife))
	assert.Equal(t, 3, catalog.Size())
}

// TestCardMetadata verifies the pipeline metadata carries duration and
// targeting straight from the definition.
func TestCardMetadata(t *testing.T) {
	card := &Card{
		ID:            "L005",
		Name:          "Good Press",
		Type:          "L",
		Target:        "All Players",
		Duration:      "Turns",
		DurationCount: 2,
	}

	meta := card.Metadata()
	assert.Equal(t, "L005", meta.CardID)
	assert.Equal(t, "Good Press", meta.CardName)
	assert.Equal(t, "All Players", meta.Target)
	assert.Equal(t, "Turns", meta.Duration)
	assert.Equal(t, 2, meta.DurationCount)
	assert.True(t, meta.Durational())
}

// TestLoadFromFile verifies catalogs load from JSON and unreadable or
// malformed files are reported.
func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards.json")
	data := `[
		{"id": "W001", "name": "Pour Foundation", "type": "W", "copies": 2, "work_cost": 200000},
		{"id": "B001", "name": "Small Loan", "type": "B", "loan_amount": 100000, "loan_rate": 5}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	catalog, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Size())
	card, ok := catalog.Get("B001")
	require.True(t, ok)
	assert.Equal(t, 100000, card.LoanAmount)
	assert.Equal(t, 5.0, card.LoanRate)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading card catalog")

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{not json"), 0o644))
	_, err = Load(badPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing card catalog")
}
