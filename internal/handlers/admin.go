package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/mmynk/homequest/internal/middleware"
	"github.com/mmynk/homequest/internal/service"
)

// uploadField is the multipart field carrying the CSV file.
const uploadField = "csvFile"

// multipartOverhead leaves room for the multipart envelope around the file.
const multipartOverhead = 64 << 10

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		clientError(w, "Invalid request body", "Request body must be a JSON object")
		return
	}

	session, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"success": true,
		"message": "User registered successfully",
		"token":   session.Token,
		"user":    session.User,
	})
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		clientError(w, "Invalid request body", "Request body must be a JSON object")
		return
	}

	session, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Signed in successfully",
		"token":   session.Token,
		"user":    session.User,
	})
}

// SignOut revokes the token the request was authenticated with.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), middleware.GetClaims(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Signed out successfully"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.CurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "user": user})
}

func (h *Handler) CSVTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.transfer.Template()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeCSV(w, tmpl.Filename, tmpl.Body)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	export, err := h.transfer.Export(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeCSV(w, export.Filename, export.Body)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.buyers.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "stats": stats})
}

// ImportCSV accepts a multipart upload in the csvFile field.
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	limit := h.opts.MaxUploadBytes
	tooLarge := fmt.Sprintf("File size should not exceed %s", formatBytes(limit))

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			clientError(w, "File too large", tooLarge)
		case errors.Is(err, http.ErrNotMultipart):
			clientError(w, "No file uploaded", `Send the CSV as multipart/form-data in the "csvFile" field`)
		default:
			clientError(w, "File upload error", err.Error())
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	if files := r.MultipartForm.File[uploadField]; len(files) > 1 {
		clientError(w, "Too many files", "Only one file is allowed")
		return
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			clientError(w, "No file uploaded", "Please upload a CSV file")
			return
		}
		clientError(w, "File upload error", err.Error())
		return
	}
	defer file.Close()

	switch {
	case header.Size > limit:
		clientError(w, "File too large", tooLarge)
		return
	case !isCSV(header.Filename, header.Header.Get("Content-Type")):
		clientError(w, "Invalid file type", "Only CSV files are allowed")
		return
	case header.Size == 0:
		clientError(w, "Empty file", "The uploaded CSV file is empty")
		return
	}

	summary, err := h.transfer.Import(r.Context(), middleware.GetUserID(r.Context()), file)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"success": true,
		"message": "CSV import completed successfully",
		"summary": summary,
	})
}

func isCSV(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/csv"
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
