package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/novatask/novatask/internal/models"
	"github.com/novatask/novatask/internal/storage"
	"github.com/novatask/novatask/internal/taskservice"
)

const maxImportBytes = 10 << 20 // 10 MB

// TransferHandler serves JSON backup export and multipart import.
type TransferHandler struct {
	svc *taskservice.Service
}

// NewTransferHandler creates a handler over the task service.
func NewTransferHandler(svc *taskservice.Service) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Export handles GET /api/export. The response body is the same JSON
// array format as the data file, offered as a download.
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.Export(r.Context())
	if err != nil {
		writeServiceError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+storage.DataFileName+`"`)
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(tasks)
}

// Import handles POST /api/import (multipart/form-data, field "file").
// The file must hold a JSON array of tasks; records with a known id are
// skipped so an import never violates the unique-id invariant.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file is not a JSON task array"))
		return
	}

	added, skipped, err := h.svc.Import(r.Context(), tasks)
	if err != nil {
		writeServiceError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Added: added, Skipped: skipped})
}
