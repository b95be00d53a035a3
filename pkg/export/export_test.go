package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSheet() Sheet {
	return Sheet{
		Title:   "Quiz 1 - Period 2",
		Headers: []string{"Student", "Grade", "Extra", "Total"},
		Rows: [][]string{
			{"Garcia, Ana", "95", "10", "100"},
			{"Smith, Jo", "", "", ""},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleSheet())
	require.NoError(t, err)
	assert.Equal(t, "Student,Grade,Extra,Total\n\"Garcia, Ana\",95,10,100\n\"Smith, Jo\",,,\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleSheet())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	sheet := sampleSheet()
	sheet.Rows = append(sheet.Rows, []string{"only one"})

	_, err := NewCSVExporter().Render(sheet)
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Sheet{})
	assert.Error(t, err)
}
