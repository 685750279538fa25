package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"dropkeep/internal/resource"
	"dropkeep/internal/service"
)

const multipartMemoryBudget int64 = 16 * 1024 * 1024

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: message})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// multipartUpload 把 multipart 文件适配为 resource.Upload。
type multipartUpload struct {
	header *multipart.FileHeader
}

func (u multipartUpload) Name() string { return u.header.Filename }

func (u multipartUpload) Extension() string {
	return strings.TrimPrefix(filepath.Ext(u.header.Filename), ".")
}

func (u multipartUpload) Open() (io.ReadCloser, error) { return u.header.Open() }

type saveRecordRequest struct {
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

// parseSaveInput 支持 multipart/form-data（字段 + 文件）和 application/json（仅字段）。
// 返回的 cleanup 用于删除 multipart 的临时文件。
func parseSaveInput(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) (service.SaveRecordInput, func(), error) {
	noop := func() {}
	if r.Body == nil {
		return service.SaveRecordInput{}, noop, fmt.Errorf("request body is empty")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req saveRecordRequest
		if err := decodeJSON(r, &req); err != nil {
			return service.SaveRecordInput{}, noop, fmt.Errorf("invalid json body: %w", err)
		}
		return service.SaveRecordInput{Kind: req.Kind, Fields: req.Fields}, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartMemoryBudget)
	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		return service.SaveRecordInput{}, noop, fmt.Errorf("invalid multipart form: %w", err)
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	input := service.SaveRecordInput{
		Fields:  map[string]string{},
		Uploads: map[string]resource.Upload{},
	}
	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		if key == "kind" {
			input.Kind = strings.TrimSpace(values[0])
			continue
		}
		input.Fields[key] = values[0]
	}
	for key, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		header := headers[0]
		if header.Size > maxUploadBytes {
			cleanup()
			return service.SaveRecordInput{}, noop, fmt.Errorf("%s exceeds size limit", key)
		}
		input.Uploads[key] = multipartUpload{header: header}
	}
	return input, cleanup, nil
}
