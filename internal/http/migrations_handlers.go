package httpserver

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mini_orm/internal/migrate"
	"mini_orm/internal/schema"
	"mini_orm/internal/storage"
)

type statusReader interface {
	Status(ctx context.Context, available []string) (migrate.Status, error)
}

type scriptStore interface {
	List() ([]string, error)
	Load(id string) (migrate.Migration, error)
}

type generator interface {
	Generate(ctx context.Context, descs []*schema.Descriptor, description string) (migrate.Migration, error)
}

type MigrationHandler struct {
	runner    statusReader
	store     scriptStore
	generator generator
	descs     []*schema.Descriptor
	logger    *slog.Logger
}

func NewMigrationHandler(runner statusReader, store scriptStore, gen generator, descs []*schema.Descriptor, logger *slog.Logger) *MigrationHandler {
	return &MigrationHandler{
		runner:    runner,
		store:     store,
		generator: gen,
		descs:     descs,
		logger:    logger,
	}
}

type migrationResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Up          string    `json:"up"`
	Down        string    `json:"down"`
}

type diffResponse struct {
	HasChanges bool   `json:"has_changes"`
	ID         string `json:"id,omitempty"`
	Up         string `json:"up"`
	Down       string `json:"down"`
}

// Status lists applied migrations and the stored ones still pending.
func (h *MigrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.List()
	if err != nil {
		h.logger.Error("list scripts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list migration scripts")
		return
	}
	st, err := h.runner.Status(r.Context(), ids)
	if err != nil {
		h.logger.Error("migration status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "status_failed", "failed to read migration history")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *MigrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.store.Load(id)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, migrate.ErrScriptNotFound):
		writeError(w, http.StatusNotFound, "not_found", "migration not found")
		return
	case errors.Is(err, storage.ErrChecksumMismatch):
		writeError(w, http.StatusConflict, "checksum_mismatch", "stored scripts do not match their manifest")
		return
	default:
		h.logger.Error("load script failed", "migration_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load_failed", "failed to load migration")
		return
	}
	writeJSON(w, http.StatusOK, migrationResponse{
		ID:          m.ID,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		Up:          m.Up,
		Down:        m.Down,
	})
}

// Diff previews the migration the generator would produce now without
// saving or applying it.
func (h *MigrationHandler) Diff(w http.ResponseWriter, r *http.Request) {
	description := strings.TrimSpace(r.URL.Query().Get("description"))
	if description == "" {
		description = "pending changes"
	}
	m, err := h.generator.Generate(r.Context(), h.descs, description)
	if err != nil {
		h.logger.Error("generate diff failed", "error", err)
		writeError(w, http.StatusInternalServerError, "diff_failed", "failed to compare schema")
		return
	}
	resp := diffResponse{HasChanges: !m.Empty(), Up: m.Up, Down: m.Down}
	if resp.HasChanges {
		resp.ID = m.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
