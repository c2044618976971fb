package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslationsDefault(t *testing.T) {
	tr := Translations{"ca": "Hola", "en": "", "es": "Hola!"}

	assert.Equal(t, "Hola!", tr.Default("es"))
	assert.Equal(t, "Hola", tr.Default("en"), "falls back to the first non-empty locale")
	assert.Equal(t, "", Translations{}.Default("en"))
}

func TestTranslationsScanRoundTrip(t *testing.T) {
	var tr Translations
	require.NoError(t, tr.Scan([]byte(`{"en":"Title"}`)))
	assert.Equal(t, "Title", tr["en"])

	var empty Translations
	require.NoError(t, empty.Scan(nil))
	assert.True(t, empty.Blank())
}

func TestChangesetAddSkipsUnchanged(t *testing.T) {
	c := Changeset{}
	c.Add("state", "accepted", "accepted")
	c.Add("answer", Translations{"en": ""}, Translations{"en": "ok"})

	assert.NotContains(t, c, "state")
	assert.Contains(t, c, "answer")
}
