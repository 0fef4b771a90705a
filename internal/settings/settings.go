// Package settings holds the document manager's runtime settings and the
// stores that persist them.
//
// Settings are loaded once per request and passed into each operation; a
// change saved mid-request takes effect on the next one.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// PluginKey identifies the document manager's settings blob.
const PluginKey = "document_manager"

// Bounds for the numeric settings.
const (
	MinDocumentsPerPage = 5
	MaxDocumentsPerPage = 100
	MinPreviewLength    = 50
	MaxPreviewLength    = 1000
	MinMemoryChunkLimit = 100
	MaxMemoryChunkLimit = 10000
)

// ErrNotFound is returned by Store.Load when nothing has been saved yet.
var ErrNotFound = errors.New("settings not found")

// Settings are the user-editable options of the document manager.
type Settings struct {
	MaxDocumentsPerPage      int    `json:"max_documents_per_page"`
	ShowDocumentPreview      bool   `json:"show_document_preview"`
	PreviewLength            int    `json:"preview_length"`
	AdminUserIDs             string `json:"admin_user_ids"`
	EnableSearchOptimization bool   `json:"enable_search_optimization"`
	MemoryChunkLimit         int    `json:"memory_chunk_limit"`
	AdminOnlyAccess          bool   `json:"admin_only_access"`
}

// Defaults returns the settings used before anything is saved.
func Defaults() Settings {
	return Settings{
		MaxDocumentsPerPage:      25,
		ShowDocumentPreview:      true,
		PreviewLength:            200,
		AdminUserIDs:             "admin",
		EnableSearchOptimization: true,
		MemoryChunkLimit:         1000,
		AdminOnlyAccess:          true,
	}
}

// Clamped returns s with every numeric field forced into its bounds.
func (s Settings) Clamped() Settings {
	s.MaxDocumentsPerPage = clamp(s.MaxDocumentsPerPage, MinDocumentsPerPage, MaxDocumentsPerPage)
	s.PreviewLength = clamp(s.PreviewLength, MinPreviewLength, MaxPreviewLength)
	s.MemoryChunkLimit = clamp(s.MemoryChunkLimit, MinMemoryChunkLimit, MaxMemoryChunkLimit)
	return s
}

// AdminIDs splits AdminUserIDs on commas, dropping blanks.
func (s Settings) AdminIDs() []string {
	var ids []string
	for _, id := range strings.Split(s.AdminUserIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsAdminID reports whether id is listed in AdminUserIDs.
func (s Settings) IsAdminID(id string) bool {
	if id == "" {
		return false
	}
	for _, admin := range s.AdminIDs() {
		if admin == id {
			return true
		}
	}
	return false
}

// Decode parses a stored blob. Missing keys keep their defaults and values
// out of range are clamped.
func Decode(data []byte) (Settings, error) {
	s := Defaults()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("decoding settings: %w", err)
	}
	return s.Clamped(), nil
}

// Encode serializes settings for storage.
func Encode(s Settings) ([]byte, error) {
	return json.Marshal(s.Clamped())
}

// Store persists settings.
type Store interface {
	// Load returns the saved settings or ErrNotFound.
	Load(ctx context.Context) (Settings, error)
	// Save replaces the saved settings.
	Save(ctx context.Context, s Settings) error
}

// Current loads settings and falls back to Defaults when nothing is saved
// or the store fails. Store failures are logged.
func Current(ctx context.Context, store Store, logger *zap.Logger) Settings {
	if store == nil {
		return Defaults()
	}
	s, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && logger != nil {
			logger.Warn("loading settings failed, using defaults", zap.Error(err))
		}
		return Defaults()
	}
	return s
}

// Seed saves Defaults when the store is empty. It reports whether it wrote.
func Seed(ctx context.Context, store Store) (bool, error) {
	_, err := store.Load(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := store.Save(ctx, Defaults()); err != nil {
		return false, fmt.Errorf("seeding settings: %w", err)
	}
	return true, nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
