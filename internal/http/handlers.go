package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/documents"
	"github.com/fyrsmithlabs/docmanager/internal/settings"
)

// Bounds of the limit query parameter.
const (
	MinListLimit = 1
	MaxListLimit = 1000
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleDocuments lists chunks, or searches them when filter is set.
func (s *Server) handleDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	st := s.current(ctx)

	limit := st.MaxDocumentsPerPage
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < MinListLimit || n > MaxListLimit {
			return echo.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("limit must be between %d and %d", MinListLimit, MaxListLimit))
		}
		limit = n
	}
	filter := strings.TrimSpace(c.QueryParam("filter"))

	records, err := s.listRecords(c, filter, limit, st)
	if err != nil {
		s.logger.Error("listing documents failed", zap.String("filter", filter), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	if records == nil {
		records = []documents.Record{}
	}

	resp := DocumentsResponse{Success: true, Documents: records}
	sources := make(map[string]struct{}, len(records))
	var latest float64
	for i := range records {
		if st.ShowDocumentPreview {
			records[i].Preview = truncate(records[i].ContentPreview, st.PreviewLength)
		}
		sources[records[i].Source] = struct{}{}
		resp.Stats.TotalCharacters += records[i].PageContentLength
		if records[i].When > latest {
			latest = records[i].When
		}
	}
	resp.Stats.TotalDocuments = len(sources)
	resp.Stats.TotalChunks = len(records)
	if latest > 0 {
		last := documents.EpochTime(latest).Format(time.RFC3339)
		resp.Stats.LastUpdate = &last
	}
	if filter != "" {
		resp.FilterApplied = &filter
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) listRecords(c echo.Context, filter string, limit int, st settings.Settings) ([]documents.Record, error) {
	ctx := c.Request().Context()
	if filter == "" {
		return s.docs.Records(ctx, limit)
	}
	results, err := s.docs.Search(ctx, filter, documents.SearchOptions{
		K:         limit,
		ScanLimit: st.MemoryChunkLimit,
		ScanOnly:  !st.EnableSearchOptimization,
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	records := make([]documents.Record, 0, len(results))
	for _, r := range results {
		records = append(records, documents.Normalize(r.Point, now))
	}
	return records, nil
}

// handleList returns chunks aggregated per source.
func (s *Server) handleList(c echo.Context) error {
	docs, err := s.docs.List(c.Request().Context(), c.QueryParam("filter"))
	if err != nil {
		s.logger.Error("aggregating documents failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	if docs == nil {
		docs = []documents.Document{}
	}
	return c.JSON(http.StatusOK, ListResponse{Success: true, Documents: docs, Count: len(docs)})
}

// handleStats returns collection statistics.
func (s *Server) handleStats(c echo.Context) error {
	st, err := s.docs.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("API stats failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, StatsResponse{Success: true, Stats: st})
}

// handleRemove deletes every chunk of one source.
func (s *Server) handleRemove(c echo.Context) error {
	var req RemoveRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid remove request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return c.JSON(http.StatusOK, MessageResponse{Message: "Source parameter is required"})
	}

	deleted, err := s.docs.DeleteBySource(c.Request().Context(), source)
	if err != nil && !errors.Is(err, documents.ErrEmptyQuery) {
		s.reqLog(c).Error("API remove failed", zap.String("source", source), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, MessageResponse{Message: err.Error()})
	}
	if deleted == 0 {
		return c.JSON(http.StatusOK, MessageResponse{Message: fmt.Sprintf("Document '%s' not found", source)})
	}

	s.reqLog(c).Info("document removed via API",
		zap.String("source", source),
		zap.Int("chunks", deleted))
	return c.JSON(http.StatusOK, MessageResponse{
		Success:       true,
		Message:       fmt.Sprintf("Removed %d chunks", deleted),
		DeletedChunks: &deleted,
	})
}

// handleClear deletes every chunk in the collection.
func (s *Server) handleClear(c echo.Context) error {
	deleted, err := s.docs.ClearAll(c.Request().Context())
	if err != nil {
		s.reqLog(c).Error("API clear failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, MessageResponse{Message: err.Error()})
	}

	s.reqLog(c).Warn("all documents cleared via API",
		zap.Int("chunks", deleted))
	return c.JSON(http.StatusOK, MessageResponse{
		Success:       true,
		Message:       fmt.Sprintf("All documents cleared (%d chunks)", deleted),
		DeletedChunks: &deleted,
	})
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
