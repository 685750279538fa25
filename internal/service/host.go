package service

import (
	"fmt"
	"sort"
	"strings"

	"dropkeep/internal/repository"
	"dropkeep/internal/resource"
)

// hostRecord 把 repository.Record 适配为 resource.Record。
// 上传内容只在内存中保存，暂存后被替换为临时区引用。
type hostRecord struct {
	current  *repository.Record
	previous map[string]string
	uploads  map[string]resource.Upload
	errors   map[string][]string
}

func newHostRecord(current *repository.Record, previous map[string]string, uploads map[string]resource.Upload) *hostRecord {
	if current.Fields == nil {
		current.Fields = map[string]string{}
	}
	h := &hostRecord{
		current:  current,
		previous: previous,
		uploads:  make(map[string]resource.Upload, len(uploads)),
		errors:   map[string][]string{},
	}
	for attr, u := range uploads {
		if u != nil {
			h.uploads[attr] = u
		}
	}
	return h
}

func (h *hostRecord) Value(attribute string) resource.Value {
	if u, ok := h.uploads[attribute]; ok {
		return resource.UploadValue(u)
	}
	return resource.RefValue(h.current.Fields[attribute])
}

func (h *hostRecord) SetValue(attribute string, value resource.Value) {
	if value.Upload != nil {
		h.uploads[attribute] = value.Upload
		return
	}
	delete(h.uploads, attribute)
	h.current.Fields[attribute] = value.Ref
}

func (h *hostRecord) OldValue(attribute string) string {
	return h.previous[attribute]
}

func (h *hostRecord) AddError(attribute, message string) {
	h.errors[attribute] = append(h.errors[attribute], message)
}

func (h *hostRecord) validationError() error {
	if len(h.errors) == 0 {
		return nil
	}
	errs := make(map[string][]string, len(h.errors))
	for k, v := range h.errors {
		errs[k] = append([]string(nil), v...)
	}
	return &ValidationError{Errors: errs}
}

// ValidationError 汇总各属性上的资源错误。
type ValidationError struct {
	Errors map[string][]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	attrs := make([]string, 0, len(e.Errors))
	for attr := range e.Errors {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		parts = append(parts, fmt.Sprintf("%s: %s", attr, strings.Join(e.Errors[attr], "; ")))
	}
	return "resource validation failed: " + strings.Join(parts, ", ")
}
