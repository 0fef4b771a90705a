package hooks

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/commands"
	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
	"github.com/fyrsmithlabs/docmanager/internal/settings"
)

// quickPhrase maps a phrase found anywhere in a message to a command.
type quickPhrase struct {
	phrase  string
	command string
	arg     string
}

// quickPhrases are matched in order; the first one contained in the
// message wins.
var quickPhrases = []quickPhrase{
	{"list documents", commands.ListDocuments, ""},
	{"show documents", commands.ListDocuments, ""},
	{"document list", commands.ListDocuments, ""},
	{"documents", commands.ListDocuments, ""},
	{"rabbit hole status", commands.DocumentStatistics, "basic"},
	{"memory status", commands.DocumentStatistics, "basic"},
}

var commandNames = []string{
	commands.ListDocuments,
	commands.RemoveDocument,
	commands.ClearAllDocuments,
	commands.DocumentStatistics,
	commands.TestDocumentPlugin,
}

// IsDocumentCommand reports whether message mentions a document command
// or quick phrase, case-insensitively.
func IsDocumentCommand(message string) bool {
	lower := strings.ToLower(message)
	for _, name := range commandNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	for _, q := range quickPhrases {
		if strings.Contains(lower, q.phrase) {
			return true
		}
	}
	return false
}

// DocumentHooks wires the document manager into a HookManager.
type DocumentHooks struct {
	commands *commands.Handler
	store    pointstore.Store
	settings settings.Store
	logger   *zap.Logger
}

// NewDocumentHooks creates the hook set. settingsStore may be nil.
func NewDocumentHooks(cmds *commands.Handler, store pointstore.Store, settingsStore settings.Store, logger *zap.Logger) (*DocumentHooks, error) {
	if cmds == nil {
		return nil, errors.New("command handler cannot be nil")
	}
	if store == nil {
		return nil, errors.New("point store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHooks{
		commands: cmds,
		store:    store,
		settings: settingsStore,
		logger:   logger.Named("hooks"),
	}, nil
}

// Register adds the enabled hooks to hm.
func (d *DocumentHooks) Register(hm *HookManager) {
	cfg := hm.Config()
	if cfg.PromptPrefix {
		prompt := cfg.AssistantPrompt()
		hm.RegisterHandler(HookAgentPromptPrefix, PriorityPromptPrefix, func(_ context.Context, data map[string]interface{}) error {
			if msg, _ := data[KeyUserMessage].(string); IsDocumentCommand(msg) {
				data[KeyPrefix] = prompt
			}
			return nil
		})
	}
	if cfg.FastReply {
		hm.RegisterHandler(HookAgentFastReply, PriorityFastReply, d.fastReply)
	}
	hm.RegisterHandler(HookAfterBootstrap, PriorityDefault, d.afterBootstrap)
}

// fastReply answers explicit commands and quick phrases. A message that
// starts with a command name runs that command, so a phrase such as
// "documents" inside "clear_all_documents CONFIRM" never shadows it.
func (d *DocumentHooks) fastReply(ctx context.Context, data map[string]interface{}) error {
	msg, _ := data[KeyUserMessage].(string)
	if strings.TrimSpace(msg) == "" {
		return nil
	}
	caller, _ := data[KeyCaller].(commands.Caller)

	if name, arg, ok := commands.Parse(msg); ok {
		out, _ := d.commands.Run(ctx, caller, name, arg)
		data[KeyOutput] = out
		return nil
	}

	lower := strings.ToLower(msg)
	for _, q := range quickPhrases {
		if strings.Contains(lower, q.phrase) {
			out, _ := d.commands.Run(ctx, caller, q.command, q.arg)
			data[KeyOutput] = out
			return nil
		}
	}
	return nil
}

func (d *DocumentHooks) afterBootstrap(ctx context.Context, _ map[string]interface{}) error {
	d.logger.Info("document manager started",
		zap.String("version", commands.Version),
		zap.String("store", d.store.Name()))

	if _, err := d.store.Enumerate(ctx, 1); err != nil {
		d.logger.Error("memory system access failed", zap.Error(err))
	} else {
		d.logger.Info("memory system access verified")
	}

	if d.settings == nil {
		return nil
	}
	seeded, err := settings.Seed(ctx, d.settings)
	if err != nil {
		d.logger.Error("initializing settings failed", zap.Error(err))
		return nil
	}
	if seeded {
		d.logger.Info("default settings initialized")
	}
	s := settings.Current(ctx, d.settings, d.logger)
	d.logger.Info("settings loaded",
		zap.Int("max_documents_per_page", s.MaxDocumentsPerPage),
		zap.Int("memory_chunk_limit", s.MemoryChunkLimit),
		zap.Bool("admin_only_access", s.AdminOnlyAccess),
		zap.Bool("enable_search_optimization", s.EnableSearchOptimization))
	return nil
}
