package budget

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/santibernabebb-gif/presupuestos/internal/extraction"
)

// maxUploadSize bounds the multipart form; phone photos run large
const maxUploadSize = int64(50 << 20) // 50MB

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeErrorJSON sends the machine-readable error shape the UI reacts to:
// the kind drives which recovery affordance (retry, alternate key) is shown.
func writeErrorJSON(w http.ResponseWriter, err error, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  string(extraction.KindOf(err)),
	})
}

// statusForError maps the extraction error taxonomy to HTTP statuses
func statusForError(err error) int {
	if errors.Is(err, extraction.ErrNoPages) {
		return http.StatusBadRequest
	}
	switch extraction.KindOf(err) {
	case extraction.KindQuota:
		return http.StatusTooManyRequests
	case extraction.KindEntitlement:
		return http.StatusForbidden
	case extraction.KindMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListBudgets returns the history, most recent first
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ListHistory()
	if err != nil {
		slog.Error("Error listing history", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleCreateBudget receives the captured page images and runs the pipeline
func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeErrorJSON(w, fmt.Errorf("error parsing form"), http.StatusBadRequest)
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["pages"]
	}
	if len(headers) == 0 {
		writeErrorJSON(w, extraction.ErrNoPages, http.StatusBadRequest)
		return
	}

	uploads := make([]extraction.Upload, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			slog.Error("Error opening uploaded page", "filename", header.Filename, "error", err)
			writeErrorJSON(w, fmt.Errorf("error reading uploaded page"), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			slog.Error("Error reading uploaded page", "filename", header.Filename, "error", err)
			writeErrorJSON(w, fmt.Errorf("error reading uploaded page"), http.StatusBadRequest)
			return
		}
		uploads = append(uploads, extraction.Upload{
			Filename:    header.Filename,
			ContentType: contentTypeFor(header.Header.Get("Content-Type"), header.Filename),
			Data:        data,
		})
	}

	opts := ProcessOptions{APIKey: r.FormValue("api_key")}
	document, err := s.service.Process(r.Context(), uploads, opts)
	if err != nil {
		slog.Error("Error processing budget", "pages", len(uploads), "error", err)
		writeErrorJSON(w, err, statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(document); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetBudget returns a single frozen document
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Budget ID required", http.StatusBadRequest)
		return
	}
	document, err := s.service.GetDocument(id)
	if err != nil {
		corsError(w, "Budget not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(document); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteBudget deletes a history entry
func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Budget ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteEntry(id); err != nil {
		corsError(w, "Budget not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadPDF renders and downloads the PDF export
func (s *Server) handleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	document, ok := s.documentFor(w, r)
	if !ok {
		return
	}

	data, err := s.exporters.PDF.Render(r.Context(), document)
	if err != nil {
		slog.Error("Error rendering PDF", "id", document.ID, "error", err)
		corsError(w, "Error rendering PDF", http.StatusInternalServerError)
		return
	}

	sendAttachment(w, data, "application/pdf", document.ExportBasename()+".pdf")
}

// handleDownloadDOCX renders and downloads the Word export
func (s *Server) handleDownloadDOCX(w http.ResponseWriter, r *http.Request) {
	document, ok := s.documentFor(w, r)
	if !ok {
		return
	}

	data, err := s.exporters.DOCX.Render(document)
	if err != nil {
		slog.Error("Error rendering DOCX", "id", document.ID, "error", err)
		corsError(w, "Error rendering DOCX", http.StatusInternalServerError)
		return
	}

	sendAttachment(w, data, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", document.ExportBasename()+".docx")
}

func (s *Server) documentFor(w http.ResponseWriter, r *http.Request) (*BudgetDocument, bool) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Budget ID required", http.StatusBadRequest)
		return nil, false
	}
	document, err := s.service.GetDocument(id)
	if err != nil {
		corsError(w, "Budget not found", http.StatusNotFound)
		return nil, false
	}
	return document, true
}

func sendAttachment(w http.ResponseWriter, data []byte, contentType, filename string) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// contentTypeFor falls back to the filename extension when the part carries
// no Content-Type, which some mobile browsers omit
func contentTypeFor(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
