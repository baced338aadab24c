package neo4j

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/catalog"
)

// rowsFromParams mimics what the load query returns for seeded params.
func rowsFromParams(params map[string]any) []map[string]any {
	var rows []map[string]any
	for _, w := range params["weeks"].([]map[string]any) {
		rows = append(rows, map[string]any{
			"course_weeks": params["course_weeks"],
			"midterm_week": params["midterm_week"],
			"final_week":   params["final_week"],
			"week":         w["week"],
			"title":        w["title"],
			"authors":      w["authors"],
			"topics":       w["topics"],
		})
	}
	return rows
}

func TestCatalogRoundTripThroughRows(t *testing.T) {
	table := catalog.Default()

	got, err := tableFromRows(rowsFromParams(catalogParams(table)))
	require.NoError(t, err)

	assert.Equal(t, table.CourseWeeks, got.CourseWeeks)
	assert.Equal(t, table.MidtermWeek, got.MidtermWeek)
	assert.Equal(t, table.Weeks(), got.Weeks())

	entry, ok := got.Entry(4)
	require.True(t, ok)
	assert.Equal(t, []string{"Titze"}, entry.Authors)
	assert.ElementsMatch(t, []string{"vocal fold", "phonation"}, entry.Topics)
}

func TestTableFromRowsEmpty(t *testing.T) {
	_, err := tableFromRows(nil)
	assert.ErrorIs(t, err, catalog.ErrInvalidTable)
}

func TestTableFromRowsRejectsBadWeeks(t *testing.T) {
	rows := []map[string]any{{
		"course_weeks": int64(5),
		"midterm_week": int64(3),
		"final_week":   int64(5),
		"week":         int64(9),
		"title":        "Out of range",
	}}
	_, err := tableFromRows(rows)
	assert.ErrorIs(t, err, catalog.ErrInvalidTable)
}

func TestAsStringsSkipsNonStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, asStrings([]any{"b", nil, 3, "a", ""}))
	assert.Nil(t, asStrings("not a list"))
}
