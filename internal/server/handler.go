package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/converter"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/source"
)

// maxRequestBytes caps the JSON body of POST /convert.
const maxRequestBytes = 1 << 20

// Client-facing error messages.
const (
	msgInvalidBody    = "invalid request body"
	msgNoURL          = "No file URL provided"
	msgInvalidLocator   = "Invalid Google Drive URL format"
	msgInvalidS3Locator = "Invalid S3 locator format, expected s3://bucket/key"
)

// ConvertRequest is the body of POST /convert.
type ConvertRequest struct {
	XMLURL string `json:"xml_url"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConvert downloads the referenced document, converts it and returns
// the spreadsheet as an attachment. The output is buffered so that a failure
// part way through still yields a clean JSON error.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	locator := strings.TrimSpace(req.XMLURL)
	if locator == "" {
		writeError(w, http.StatusBadRequest, msgNoURL)
		return
	}

	var out bytes.Buffer
	result := s.converter.ConvertLocator(r.Context(), locator, &out)

	if result.Error != nil {
		// The timeout middleware answers for expired requests, and nobody
		// is listening on a canceled one.
		if r.Context().Err() != nil {
			return
		}

		s.log.Warn().
			Err(result.Error).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("conversion request failed")

		if converter.StageOf(result.Error) == converter.StageLocate {
			writeError(w, http.StatusBadRequest, invalidLocatorMessage(locator))
			return
		}
		writeError(w, http.StatusInternalServerError, publicMessage(result.Error))
		return
	}

	writer := s.converter.Writer()

	w.Header().Set("Content-Type", writer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "output"+writer.Extension()))
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = out.WriteTo(w)
}

// invalidLocatorMessage names the locator kind that could not be resolved.
func invalidLocatorMessage(locator string) string {
	if strings.HasPrefix(locator, source.S3Scheme) {
		return msgInvalidS3Locator
	}
	return msgInvalidLocator
}

// publicMessage renders a conversion error for clients: the stage and its
// cause, without internal details beyond the error chain.
func publicMessage(err error) string {
	var stageErr *converter.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Error()
	}
	return "conversion failed"
}
