package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"dropkeep/internal/repository"
	"dropkeep/internal/resource"
	"dropkeep/internal/service"
	"dropkeep/internal/storage"

	"github.com/go-chi/chi/v5"
)

// RecordHandler 提供记录及其资源相关的 HTTP 端点。
type RecordHandler struct {
	service        *service.RecordService
	maxUploadBytes int64
	publicURL      string
}

func NewRecordHandler(s *service.RecordService, maxUploadBytes int64, publicURL string) *RecordHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 * 1024 * 1024
	}
	return &RecordHandler{service: s, maxUploadBytes: maxUploadBytes, publicURL: publicURL}
}

func (h *RecordHandler) RegisterRoutes(r chi.Router) {
	r.Route("/records", func(r chi.Router) {
		r.Get("/", h.ListRecords)
		r.Post("/", h.CreateRecord)
		r.Get("/{id}", h.GetRecord)
		r.Put("/{id}", h.UpdateRecord)
		r.Delete("/{id}", h.DeleteRecord)
		r.Get("/{id}/resources/{attribute}", h.GetResource)
		r.Get("/{id}/resources/{attribute}/download", h.DownloadResource)
	})
}

// CreateRecord 接受 multipart/form-data 上传并创建记录。
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}

	input, cleanup, err := parseSaveInput(w, r, h.maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	record, err := h.service.CreateRecord(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{Data: record})
}

// UpdateRecord 覆盖记录字段，可同时上传新资源。
func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}

	input, cleanup, err := parseSaveInput(w, r, h.maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	record, err := h.service.UpdateRecord(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: record})
}

// ListRecords 返回记录集合。
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}

	params := repository.ListRecordsParams{Kind: r.URL.Query().Get("kind")}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			params.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			params.Offset = offset
		}
	}

	records, err := h.service.ListRecords(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: records})
}

// GetRecord 返回单条记录。
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}

	record, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: record})
}

// DeleteRecord 软删除记录，资源移回临时区。
func (h *RecordHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}

	if err := h.service.DeleteRecord(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"id": id, "deleted": true}})
}

type resourceView struct {
	Attribute string `json:"attribute"`
	storage.Location
}

// GetResource 返回资源的相对路径与公开 URL，文件系统绝对路径只在服务内部使用。
func (h *RecordHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	attribute := chi.URLParam(r, "attribute")

	p, err := h.service.ResourcePath(r.Context(), id, attribute, false)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	view := resourceView{Attribute: attribute, Location: storage.Locate(h.publicURL, p)}
	writeJSON(w, http.StatusOK, envelope{Data: view})
}

// DownloadResource 返回资源内容以供下载。
func (h *RecordHandler) DownloadResource(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	attribute := chi.URLParam(r, "attribute")

	p, err := h.service.ResourcePath(r.Context(), id, attribute, false)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	content, err := h.service.OpenResource(r.Context(), id, attribute)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer content.Close()

	contentType := mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(p)))

	if _, err := io.Copy(w, content); err != nil {
		// 客户端可能已断开，无法再写入错误响应
		return
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorEnvelope{Error: "resource validation failed", Fields: verr.Errors})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, resource.ErrUnknownAttribute):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, resource.ErrExistence):
		writeError(w, http.StatusNotFound, "resource not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
