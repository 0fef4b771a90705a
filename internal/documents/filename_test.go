package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "report.pdf", want: "report"},
		{in: "  Report.PDF  ", want: "report"},
		{in: `"report.pdf"`, want: "report"},
		{in: "“report.pdf”", want: "report"},
		{in: "'report'", want: "report"},
		{in: "Résumé.docx", want: "resume"},
		{in: "Report (2024).PDF", want: "report 2024"},
		{in: "archive.tar.gz", want: "archive"},
		{in: "v1.2 notes.md", want: "v1.2 notes"},
		{in: "docs/guide.v2.html", want: "docs/guide.v2"},
		{in: "my.notes.txt", want: "my.notes"},
		{in: "report.final.pdf", want: "report.final"},
		{in: "data.xyz", want: "data.xyz"},
		{in: ".env", want: ".env"},
		{in: "no_extension", want: "no_extension"},
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "日本語.txt", want: ".txt"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFilename(tt.in))
		})
	}
}

func TestNormalizeFilename_Idempotent(t *testing.T) {
	inputs := []string{
		"Report (2024).PDF", "a.b.c", "café — menu.pdf", `"quoted name".txt`,
		"dir.v1/file.tar.gz", "my.notes.txt", "backup.pdf.zip", "report .pdf", "x.1", "Ünïcödé", "trailing/",
	}
	for _, in := range inputs {
		once := NormalizeFilename(in)
		assert.Equal(t, once, NormalizeFilename(once), "input %q", in)
	}
}

func TestNormalizeFilename_EquivalentNames(t *testing.T) {
	base := NormalizeFilename("resume")
	for _, variant := range []string{"Résumé", "RESUME.pdf", `"resume"`, "‘Resume.txt’", " resume "} {
		assert.Equal(t, base, NormalizeFilename(variant), "variant %q", variant)
	}
}

func TestMatchesSource(t *testing.T) {
	assert.True(t, MatchesSource("report 2024", "Report (2024).PDF"))
	assert.True(t, MatchesSource("report", "", "Quarterly Report.pdf"))
	assert.False(t, MatchesSource("report", "notes.md"))
	assert.False(t, MatchesSource("   ", "anything.pdf"), "blank query matches nothing")
	assert.False(t, MatchesSource("report"))
	assert.True(t, MatchesSource("my.notes.txt", "My.Notes.TXT"))
	assert.False(t, MatchesSource("my.notes.txt", "economy.pdf", "anatomy_v2.docx"))
}
