package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kalambet/tenderscope/internal/search"
	"github.com/kalambet/tenderscope/internal/tender"
)

var csvContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
	"text/plain":               true,
}

func handleRoot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Procurement intelligence pipeline API",
			"name":    Name,
			"version": deps.Version,
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestResponse struct {
	Status string `json:"status"`
	tender.IngestionResult
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes)
		defer r.Body.Close()

		mr, err := r.MultipartReader()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "expected a multipart/form-data upload with a file field")
			return
		}

		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, "invalid_upload", "file field is required")
				return
			}
			if err != nil {
				writeUploadError(w, deps, err)
				return
			}
			if part.FormName() != "file" {
				part.Close()
				continue
			}

			filename := part.FileName()
			if !isCSV(filename, part.Header.Get("Content-Type")) {
				writeError(w, http.StatusBadRequest, "not_csv", "only CSV files are accepted")
				return
			}

			res, err := deps.Pipeline.Ingest(r.Context(), part, filename)
			if err != nil {
				writeUploadError(w, deps, err)
				return
			}
			writeJSON(w, http.StatusOK, ingestResponse{Status: "success", IngestionResult: res})
			return
		}
	}
}

func writeUploadError(w http.ResponseWriter, deps Deps, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large",
			"upload exceeds the limit of "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return
	}
	writeServiceError(w, deps.Logger, err)
}

// isCSV accepts a part named *.csv or one declared with a CSV-compatible
// content type.
func isCSV(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return csvContentTypes[mt]
}

func handleValidate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := deps.Pipeline.Validate(r.Context())
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "success",
			"message":       "Validation completed",
			"run_id":        rep.RunID,
			"quality_score": rep.Score,
			"total_checks":  len(rep.Logs),
		})
	}
}

func handlePipelineHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := deps.Pipeline.Health(r.Context())
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleDataQuality(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r, defaultLogsLimit, maxLogsLimit)
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		logs, err := deps.Pipeline.QualityLogs(r.Context(), limit)
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		if logs == nil {
			logs = []tender.QualityLog{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total_checks": len(logs),
			"logs":         logs,
		})
	}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

type searchHit struct {
	ID           string  `json:"id"`
	TenderID     string  `json:"tender_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Organization string  `json:"organization"`
	Category     string  `json:"category"`
	Location     string  `json:"location"`
	Value        float64 `json:"value"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	Similarity   float64 `json:"similarity"`
}

type searchResponse struct {
	Query   string      `json:"query"`
	Results []searchHit `json:"results"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSearchBodySize)
		defer r.Body.Close()

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
			return
		}

		limit := defaultSearchLimit
		if req.Limit != nil {
			limit = *req.Limit
		}
		if limit > deps.MaxSearchLimit {
			limit = deps.MaxSearchLimit
		}

		results, err := deps.Pipeline.Search(r.Context(), req.Query, limit)
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: toHits(results)})
	}
}

func toHits(results []search.Result) []searchHit {
	hits := make([]searchHit, len(results))
	for i, res := range results {
		t := res.Tender
		hits[i] = searchHit{
			ID:           t.ID,
			TenderID:     t.TenderID,
			Title:        t.Title,
			Description:  t.Description,
			Organization: t.Organization,
			Category:     t.Category,
			Location:     t.Location,
			Value:        t.Value,
			Currency:     t.Currency,
			Status:       t.Status,
			Similarity:   math.Round(res.Similarity*1000) / 1000,
		}
	}
	return hits
}

func handleTenders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r, defaultTendersLimit, 0)
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		ts, err := deps.Pipeline.Tenders(r.Context(), limit)
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		if ts == nil {
			ts = []tender.Tender{}
		}
		writeJSON(w, http.StatusOK, ts)
	}
}

func handleReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Pipeline.Reset(r.Context()); err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

// parseLimit reads the limit query parameter. A missing value selects
// defaultVal; a malformed or non-positive one is an invalid argument.
func parseLimit(r *http.Request, defaultVal, maxVal int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, tender.InvalidArgument("limit must be a positive integer, got %q", s)
	}
	if maxVal > 0 && v > maxVal {
		return maxVal, nil
	}
	return v, nil
}
