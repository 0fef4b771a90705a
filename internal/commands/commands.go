// Package commands implements the chat-bound document commands. Every
// command returns the text shown to the user verbatim; failures are
// reported in that text rather than as errors.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/auth"
	"github.com/fyrsmithlabs/docmanager/internal/documents"
	"github.com/fyrsmithlabs/docmanager/internal/notify"
	"github.com/fyrsmithlabs/docmanager/internal/settings"
)

// Version is reported by test_document_plugin.
const Version = "2.0.3"

// APIPath is the HTTP listing endpoint advertised in command footers.
const APIPath = "/documents/api/documents"

// Command names.
const (
	ListDocuments      = "list_documents"
	RemoveDocument     = "remove_document"
	ClearAllDocuments  = "clear_all_documents"
	DocumentStatistics = "document_statistics"
	TestDocumentPlugin = "test_document_plugin"
)

// ClearConfirmation must be passed to clear_all_documents verbatim.
const ClearConfirmation = "CONFIRM"

const accessDenied = "❌ Access denied: admin privileges required."

// Caller identifies who runs a command.
type Caller struct {
	UserID   string
	Identity *auth.Identity
}

func (c Caller) userID() string {
	if c.UserID != "" {
		return c.UserID
	}
	if c.Identity != nil && c.Identity.Subject != "" {
		return c.Identity.Subject
	}
	return "unknown"
}

// Command describes one chat command.
type Command struct {
	Name        string
	Description string
	Argument    string
	Run         func(ctx context.Context, caller Caller, arg string) string
}

// Handler runs document commands.
type Handler struct {
	docs     *documents.Service
	settings settings.Store
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a command handler. settingsStore and notifier may be nil.
func New(docs *documents.Service, settingsStore settings.Store, notifier notify.Notifier, logger *zap.Logger) (*Handler, error) {
	if docs == nil {
		return nil, errors.New("document service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Handler{
		docs:     docs,
		settings: settingsStore,
		notifier: notifier,
		logger:   logger.Named("commands"),
		now:      time.Now,
	}, nil
}

// Commands lists every command in a stable order.
func (h *Handler) Commands() []Command {
	return []Command{
		{
			Name:        ListDocuments,
			Description: "List all documents in the Rabbit Hole with optional filtering.",
			Argument:    "query_filter",
			Run:         h.ListDocuments,
		},
		{
			Name:        RemoveDocument,
			Description: "Remove a specific document from the Rabbit Hole.",
			Argument:    "document_name",
			Run:         h.RemoveDocument,
		},
		{
			Name:        ClearAllDocuments,
			Description: "Clear ALL documents from the Rabbit Hole. Requires confirmation.",
			Argument:    "confirmation",
			Run:         h.ClearAllDocuments,
		},
		{
			Name:        DocumentStatistics,
			Description: "Show comprehensive statistics about documents in the Rabbit Hole.",
			Argument:    "detail_level",
			Run:         h.DocumentStatistics,
		},
		{
			Name:        TestDocumentPlugin,
			Description: "Test the document manager plugin functionality.",
			Argument:    "test_message",
			Run:         h.TestDocumentPlugin,
		},
	}
}

// Run executes the named command. ok is false for unknown names.
func (h *Handler) Run(ctx context.Context, caller Caller, name, arg string) (out string, ok bool) {
	for _, cmd := range h.Commands() {
		if cmd.Name == name {
			return cmd.Run(ctx, caller, arg), true
		}
	}
	return "", false
}

// Parse splits a chat message into a command name and its argument. ok is
// false when the first word is not a command.
func Parse(message string) (name, arg string, ok bool) {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return "", "", false
	}
	name = strings.ToLower(fields[0])
	switch name {
	case ListDocuments, RemoveDocument, ClearAllDocuments, DocumentStatistics, TestDocumentPlugin:
		return name, strings.Join(fields[1:], " "), true
	}
	return "", "", false
}

func (h *Handler) current(ctx context.Context) settings.Settings {
	return settings.Current(ctx, h.settings, h.logger)
}

// ListDocuments lists recent chunks, or searches them when filter is set.
func (h *Handler) ListDocuments(ctx context.Context, caller Caller, filter string) string {
	s := h.current(ctx)
	if !auth.CommandAllowed(caller.Identity, s) {
		return accessDenied
	}

	filter = strings.TrimSpace(filter)
	records, err := h.docs.Chunks(ctx, filter, s.MaxDocumentsPerPage, documents.SearchOptions{
		ScanLimit: s.MemoryChunkLimit,
		ScanOnly:  !s.EnableSearchOptimization,
	})
	if err != nil {
		h.logger.Error("listing documents failed", zap.Error(err))
		return fmt.Sprintf("❌ Error accessing documents: %v", err)
	}
	if len(records) == 0 {
		if filter != "" {
			return fmt.Sprintf("🔍 No documents found matching '%s'", filter)
		}
		return "📄 No documents found. Upload some files to get started!"
	}
	if len(records) > s.MaxDocumentsPerPage {
		records = records[:s.MaxDocumentsPerPage]
	}

	var b strings.Builder
	if filter != "" {
		fmt.Fprintf(&b, "🔍 **Search results for '%s'**\n\n", filter)
	}
	b.WriteString(FormatDocumentList(records, s.ShowDocumentPreview, s.PreviewLength))
	b.WriteString(listFooter())
	return b.String()
}

// RemoveDocument deletes every chunk of the named document.
func (h *Handler) RemoveDocument(ctx context.Context, caller Caller, name string) string {
	if !auth.CommandAllowed(caller.Identity, h.current(ctx)) {
		return accessDenied
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "❌ Please specify the document name to remove.\nExample: `remove_document my_file.pdf`"
	}

	deleted, err := h.docs.DeleteBySource(ctx, name)
	if err != nil && !errors.Is(err, documents.ErrEmptyQuery) {
		h.logger.Error("removing document failed", zap.String("document", name), zap.Error(err))
		return fmt.Sprintf("❌ Error removing document: %v", err)
	}
	if deleted == 0 {
		return fmt.Sprintf("❌ Document '%s' not found.\nUse `list_documents` to see available documents.", name)
	}

	h.logger.Warn("document removed",
		zap.String("document", name),
		zap.String("user_id", caller.userID()),
		zap.Int("chunks", deleted))
	h.send(ctx, caller, notify.KindRemoved, "🗑️ Document removed: "+name)
	return fmt.Sprintf("✅ Successfully removed '%s' (%d chunks deleted)", name, deleted)
}

// ClearAllDocuments empties the collection once confirmed.
func (h *Handler) ClearAllDocuments(ctx context.Context, caller Caller, confirmation string) string {
	if !auth.CommandAllowed(caller.Identity, h.current(ctx)) {
		return accessDenied
	}
	if strings.TrimSpace(confirmation) != ClearConfirmation {
		return clearWarning
	}

	deleted, err := h.docs.ClearAll(ctx)
	if err != nil {
		h.logger.Error("clearing documents failed", zap.Error(err))
		return fmt.Sprintf("❌ Error clearing documents: %v", err)
	}

	h.logger.Warn("all documents cleared",
		zap.String("user_id", caller.userID()),
		zap.Int("chunks", deleted))
	h.send(ctx, caller, notify.KindCleared, "🧹 Rabbit Hole completely cleared")
	return clearedMessage(deleted, h.now().Format(documents.DateLayout))
}

// DocumentStatistics reports collection statistics. level "detailed" adds
// per-document figures; anything else is the basic view.
func (h *Handler) DocumentStatistics(ctx context.Context, caller Caller, level string) string {
	if !auth.CommandAllowed(caller.Identity, h.current(ctx)) {
		return accessDenied
	}

	st, err := h.docs.Stats(ctx)
	if err != nil {
		h.logger.Error("computing statistics failed", zap.Error(err))
		return fmt.Sprintf("❌ Error generating statistics: %v", err)
	}
	detailed := strings.EqualFold(strings.TrimSpace(level), "detailed")
	return FormatStatistics(st, detailed)
}

// TestDocumentPlugin checks each component and reports its status.
func (h *Handler) TestDocumentPlugin(ctx context.Context, caller Caller, msg string) string {
	if !auth.CommandAllowed(caller.Identity, h.current(ctx)) {
		return accessDenied
	}

	sample, sampleErr := h.docs.Records(ctx, 5)
	settingsOK := true
	if h.settings != nil {
		if _, err := h.settings.Load(ctx); err != nil && !errors.Is(err, settings.ErrNotFound) {
			settingsOK = false
		}
	}
	docs, docsErr := h.docs.List(ctx, "")

	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "None provided"
	}

	var b strings.Builder
	b.WriteString("🧪 **Document Manager Plugin Test**\n\n")
	b.WriteString("📋 **System Information:**\n")
	fmt.Fprintf(&b, "• Plugin version: %s\n", Version)
	fmt.Fprintf(&b, "• User ID: %s\n", caller.userID())
	fmt.Fprintf(&b, "• Test message: %s\n\n", msg)

	b.WriteString("🔧 **Component Status:**\n")
	fmt.Fprintf(&b, "• Memory access: %s\n", status(sampleErr == nil))
	fmt.Fprintf(&b, "• Settings system: %s\n", status(settingsOK))
	fmt.Fprintf(&b, "• Document operations: %s\n", status(docsErr == nil))
	b.WriteString("• Authentication: ✅ Working (you're accessing this)\n\n")

	b.WriteString("📊 **Quick Stats:**\n")
	fmt.Fprintf(&b, "• Available memory points: %d\n", len(sample))
	fmt.Fprintf(&b, "• Unique documents: %d\n\n", len(docs))

	b.WriteString("💡 **Available Commands:**\n")
	b.WriteString("• `list_documents` - View all documents\n")
	b.WriteString("• `document_statistics basic` - View statistics\n")
	b.WriteString("• `remove_document <name>` - Remove document\n")
	b.WriteString("• HTTP API: `" + APIPath + "`\n")
	return b.String()
}

func (h *Handler) send(ctx context.Context, caller Caller, kind, message string) {
	err := h.notifier.Notify(ctx, notify.Notification{
		UserID:  caller.userID(),
		Kind:    kind,
		Message: message,
		Time:    h.now(),
	})
	if err != nil {
		h.logger.Warn("sending notification failed", zap.String("kind", kind), zap.Error(err))
	}
}
