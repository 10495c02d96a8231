package errors

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// HTTPErrorAdapter renders build failures for the development server, either as
// JSON for API callers or as an HTML overlay page for browsers.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates a new HTTP error adapter.
// If logger is nil, the default logger is used.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the JSON error payload.
type HTTPErrorResponse struct {
	Error    string         `json:"error"`
	Code     string         `json:"code,omitempty"`
	Severity string         `json:"severity,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// StatusCodeFor maps an error to an HTTP status code. Unknown errors map to 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	c, ok := AsClassified(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch c.Category() {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryContent, CategoryTemplate, CategoryFilter, CategoryAsset, CategoryBuild:
		return http.StatusUnprocessableEntity
	case CategoryRuntime:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FormatErrorResponse builds the JSON payload for an error.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{}
	}
	c, ok := AsClassified(err)
	if !ok {
		return HTTPErrorResponse{Error: "internal error", Code: string(CategoryInternal)}
	}
	resp := HTTPErrorResponse{
		Error:    c.Message(),
		Code:     string(c.Category()),
		Severity: string(c.Severity()),
	}
	if len(c.Context()) > 0 {
		resp.Details = maps.Clone(c.Context())
	}
	if c.Cause() != nil {
		if resp.Details == nil {
			resp.Details = map[string]any{}
		}
		resp.Details["cause"] = c.Cause().Error()
	}
	return resp
}

// WriteErrorResponse writes the error as JSON or as an HTML overlay depending
// on the request's Accept header.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	status := a.StatusCodeFor(err)
	payload := a.FormatErrorResponse(err)

	if status >= 500 {
		a.logger.Error("HTTP request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		a.logger.Warn("HTTP request failed", "path", r.URL.Path, "status", status, "error", err)
	}

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = overlayTemplate.Execute(w, overlayData(payload))
		return
	}

	b, jerr := json.Marshal(payload)
	if jerr != nil {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("{\"error\":\"internal error\"}"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// RenderOverlay returns the HTML error overlay for err as a standalone page.
func RenderOverlay(err error) string {
	var b strings.Builder
	_ = overlayTemplate.Execute(&b, overlayData(NewHTTPErrorAdapter(nil).FormatErrorResponse(err)))
	return b.String()
}

type overlayDetail struct {
	Key   string
	Value any
}

type overlayView struct {
	Code    string
	Message string
	Details []overlayDetail
}

func overlayData(resp HTTPErrorResponse) overlayView {
	view := overlayView{Code: resp.Code, Message: resp.Error}
	for _, k := range slices.Sorted(maps.Keys(resp.Details)) {
		view.Details = append(view.Details, overlayDetail{Key: k, Value: resp.Details[k]})
	}
	return view
}

var overlayTemplate = template.Must(template.New("overlay").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Build error</title>
<style>body{font-family:monospace;background:#1e1e1e;color:#eee;padding:2em}h1{color:#ff6b6b}dt{color:#aaa}dd{margin:0 0 1em 1em;white-space:pre-wrap}</style>
</head><body>
<h1>Build error{{if .Code}} ({{.Code}}){{end}}</h1>
<p>{{.Message}}</p>
{{if .Details}}<dl>{{range .Details}}<dt>{{.Key}}</dt><dd>{{.Value}}</dd>{{end}}</dl>{{end}}
</body></html>
`))
