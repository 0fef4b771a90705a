package commands

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fyrsmithlabs/docmanager/internal/documents"
)

// maxChunkLines is how many chunks of a multi-chunk document are listed.
const maxChunkLines = 5

// maxDetailedSources is how many sources the detailed statistics show.
const maxDetailedSources = 15

var printer = message.NewPrinter(language.English)

// thousands formats n with comma separators.
func thousands(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatDocumentList renders chunk records grouped by source, in the order
// sources first appear.
func FormatDocumentList(records []documents.Record, showPreview bool, previewLength int) string {
	if len(records) == 0 {
		return "📄 No documents found in Rabbit Hole."
	}

	var order []string
	bySource := make(map[string][]documents.Record)
	for _, r := range records {
		if _, ok := bySource[r.Source]; !ok {
			order = append(order, r.Source)
		}
		bySource[r.Source] = append(bySource[r.Source], r)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📚 **Documents in Rabbit Hole** (%d found)\n\n", len(records))
	for _, source := range order {
		chunks := bySource[source]
		chars := 0
		latest := 0.0
		for _, c := range chunks {
			chars += c.PageContentLength
			latest = max(latest, c.When)
		}
		uploaded := "Unknown"
		if latest != 0 {
			uploaded = documents.FormatDate(latest)
		}

		fmt.Fprintf(&b, "📁 **%s** (%d chunks, %s chars)\n", source, len(chunks), thousands(chars))
		fmt.Fprintf(&b, "   └─ Uploaded: %s\n", uploaded)

		if len(chunks) > 1 {
			for _, c := range chunks[:min(len(chunks), maxChunkLines)] {
				fmt.Fprintf(&b, "   └─ Chunk %v/%v (%d chars)\n", c.ChunkIndex, c.TotalChunks, c.PageContentLength)
				if showPreview && c.ContentPreview != "" {
					fmt.Fprintf(&b, "      *%s...*\n", cut(c.ContentPreview, previewLength))
				}
			}
			if len(chunks) > maxChunkLines {
				fmt.Fprintf(&b, "   └─ ...and %d more chunks\n", len(chunks)-maxChunkLines)
			}
		} else if showPreview && chunks[0].ContentPreview != "" {
			fmt.Fprintf(&b, "   └─ *%s...*\n", cut(chunks[0].ContentPreview, previewLength))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatStatistics renders collection statistics. detailed adds per-source
// figures and the chunk size distribution.
func FormatStatistics(st documents.Stats, detailed bool) string {
	var b strings.Builder
	b.WriteString("📊 **Document Statistics**\n\n")
	if st.TotalChunks == 0 {
		b.WriteString("📄 No documents found in Rabbit Hole.")
		return b.String()
	}

	b.WriteString("📁 **Overview:**\n")
	fmt.Fprintf(&b, "• Total documents: %d\n", st.TotalDocuments)
	fmt.Fprintf(&b, "• Total chunks: %d\n", st.TotalChunks)
	fmt.Fprintf(&b, "• Total characters: %s\n", thousands(st.TotalCharacters))
	fmt.Fprintf(&b, "• Average chars per chunk: %s\n", thousands(st.AverageChunkSize))
	fmt.Fprintf(&b, "• Estimated memory: %.1f MB\n", float64(st.TotalCharacters*2)/(1024*1024))
	fmt.Fprintf(&b, "• Latest upload: %s\n", st.LastUpdate)
	fmt.Fprintf(&b, "• First upload: %s\n", st.FirstUpdate)
	b.WriteString("\n")

	if detailed && len(st.Sources) > 0 {
		b.WriteString("📋 **Document Details:**\n\n")
		for _, src := range st.TopSources(maxDetailedSources) {
			fmt.Fprintf(&b, "📄 **%s**\n", src.Source)
			fmt.Fprintf(&b, "   └─ %d chunks, %s characters\n", src.Chunks, thousands(src.Characters))
			fmt.Fprintf(&b, "   └─ Average chunk size: %s chars\n", thousands(src.AverageChunkSize()))
			fmt.Fprintf(&b, "   └─ Upload date: %s\n\n", documents.EpochTime(src.UploadDate).Format("02/01/2006"))
		}
		if n := len(st.Sources); n > maxDetailedSources {
			fmt.Fprintf(&b, "...and %d more documents\n\n", n-maxDetailedSources)
		}

		d := st.ChunkSizeDistribution
		b.WriteString("📈 **Chunk Size Distribution:**\n")
		fmt.Fprintf(&b, "• Small (< 500 chars): %d chunks\n", d.Small)
		fmt.Fprintf(&b, "• Medium (500-2000 chars): %d chunks\n", d.Medium)
		fmt.Fprintf(&b, "• Large (> 2000 chars): %d chunks\n\n", d.Large)
	}

	b.WriteString("💡 **Management Commands:**\n")
	b.WriteString("• `list_documents` - View all documents\n")
	b.WriteString("• `list_documents <search>` - Search documents\n")
	b.WriteString("• `remove_document <name>` - Remove specific document\n")
	b.WriteString("• `clear_all_documents CONFIRM` - Clear everything\n")
	b.WriteString("• HTTP API: `" + APIPath + "`\n")
	return b.String()
}

func listFooter() string {
	var b strings.Builder
	b.WriteString("\n💡 **Available commands:**\n")
	b.WriteString("- `remove_document <filename>` - Remove specific document\n")
	b.WriteString("- `clear_all_documents CONFIRM` - Clear all documents\n")
	b.WriteString("- `document_statistics` - View detailed statistics\n")
	b.WriteString("- `test_document_plugin` - Test plugin functionality\n")
	b.WriteString("- HTTP API: `" + APIPath + "`\n")
	return b.String()
}

const clearWarning = "⚠️ **WARNING**: This will permanently delete ALL documents from the Rabbit Hole!\n\n" +
	"This action cannot be undone. All uploaded documents and their chunks will be lost.\n\n" +
	"To confirm this action, use: `clear_all_documents CONFIRM`"

func clearedMessage(deleted int, at string) string {
	return fmt.Sprintf("✅ **Rabbit Hole cleared successfully**\n\n"+
		"📊 **Results:**\n"+
		"- %d chunks deleted\n"+
		"- All documents removed\n"+
		"- Completed at: %s\n\n"+
		"💡 You can now upload new documents to start fresh.", deleted, at)
}

func status(ok bool) string {
	if ok {
		return "✅ Working"
	}
	return "❌ Failed"
}

// cut truncates s to n runes.
func cut(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
