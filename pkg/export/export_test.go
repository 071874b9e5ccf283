package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func catalogTable() Table {
	return Table{
		Title:   "Media Catalog",
		Columns: []string{"ID", "Filename", "Category", "Size"},
		Rows: [][]string{
			{"file-1", "lecture.mp4", "VIDEO", "1048576"},
			{"file-2", "syllabus.pdf", "DOCUMENT", "2048"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, format)

	format, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	require.Equal(t, FormatPDF, format)

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}

func TestRenderCSV(t *testing.T) {
	data, contentType, err := Render(catalogTable(), FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "text/csv", contentType)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 3)
	require.Equal(t, "ID,Filename,Category,Size", string(lines[0]))
	require.Contains(t, string(lines[1]), "lecture.mp4")
}

func TestRenderPDF(t *testing.T) {
	data, contentType, err := Render(catalogTable(), FormatPDF)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", contentType)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderRequiresColumns(t *testing.T) {
	_, _, err := Render(Table{}, FormatCSV)
	require.Error(t, err)
}
