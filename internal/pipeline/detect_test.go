package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxscore/internal/profile"
)

func TestDetectSpecSheet(t *testing.T) {
	table := profile.Default().Table()

	res := DetectSpecSheet(table, "Technisches Merkblatt", "Tropfpunkt: 110 °C\nDichte: 0,93", nil)
	assert.True(t, res.IsSpecSheet)
	assert.Equal(t, "rules_positive", res.Reason)

	res = DetectSpecSheet(table, "Re: invoice", "see attached", []string{"invoice.docx"})
	assert.False(t, res.IsSpecSheet)
	assert.Equal(t, "rules_negative", res.Reason)

	res = DetectSpecSheet(table, "TDS", "", []string{"FT105.PDF"})
	assert.True(t, res.IsSpecSheet)
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestDetectSpecSheetMail(t *testing.T) {
	res, err := DetectSpecSheetMail(profile.Default().Table(), []byte(sampleMail), "")
	require.NoError(t, err)
	assert.True(t, res.IsSpecSheet)
}
