package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/kiranshivaraju/partscout/internal/ai"
	"github.com/kiranshivaraju/partscout/internal/api/response"
)

const (
	maxKeywords      = 20
	maxMultipartMem  = 1 << 20
	imageFormField   = "image"
	keywordFormField = "keywords"
	jobIDFormField   = "job_id"
)

// analyzeRequest is the JSON form of a submission.
type analyzeRequest struct {
	JobID       string   `json:"job_id" validate:"omitempty,max=128"`
	Keywords    []string `json:"keywords" validate:"omitempty,max=20,dive,max=100"`
	ImageBase64 string   `json:"image_base64" validate:"omitempty,base64"`
	ImageName   string   `json:"image_name" validate:"omitempty,max=255"`
}

// decodeSubmit reads a multipart or JSON submission. On failure it has already
// written the error response.
func (h *Jobs) decodeSubmit(w http.ResponseWriter, r *http.Request) (ai.SubmitRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		req ai.SubmitRequest
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		req, err = h.decodeMultipart(r)
	case "application/json", "":
		req, err = h.decodeJSON(r)
	default:
		response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
			"Use multipart/form-data or application/json", nil)
		return req, false
	}
	if err != nil {
		writeDecodeError(w, err)
		return req, false
	}

	if len(req.Image) > 0 {
		mt := mimetype.Detect(req.Image)
		if !strings.HasPrefix(mt.String(), "image/") {
			response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE",
				fmt.Sprintf("Uploaded file is %s, not an image", mt.String()), nil)
			return req, false
		}
		req.MIMEType = mt.String()
	}
	if len(req.Image) == 0 && len(req.Keywords) == 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", ai.ErrInvalidInput.Error(), nil)
		return req, false
	}
	return req, true
}

func (h *Jobs) decodeMultipart(r *http.Request) (ai.SubmitRequest, error) {
	if err := r.ParseMultipartForm(maxMultipartMem); err != nil {
		return ai.SubmitRequest{}, err
	}
	req := ai.SubmitRequest{
		ID:       strings.TrimSpace(r.FormValue(jobIDFormField)),
		Keywords: splitKeywords(r.MultipartForm.Value[keywordFormField]),
	}
	if len(req.Keywords) > maxKeywords {
		return req, fieldError{field: "keywords", rule: fmt.Sprintf("at most %d keywords", maxKeywords)}
	}

	file, header, err := r.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, err
	}
	defer file.Close()

	req.Image, err = io.ReadAll(file)
	if err != nil {
		return req, err
	}
	req.ImageName = filepath.Base(header.Filename)
	return req, nil
}

func (h *Jobs) decodeJSON(r *http.Request) (ai.SubmitRequest, error) {
	var body analyzeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return ai.SubmitRequest{}, err
	}

	body.ImageBase64 = stripDataURL(strings.TrimSpace(body.ImageBase64))
	if err := h.validate.Struct(body); err != nil {
		return ai.SubmitRequest{}, err
	}

	req := ai.SubmitRequest{
		ID:        strings.TrimSpace(body.JobID),
		Keywords:  splitKeywords(body.Keywords),
		ImageName: body.ImageName,
	}
	if body.ImageBase64 != "" {
		img, err := base64.StdEncoding.DecodeString(body.ImageBase64)
		if err != nil {
			return req, fieldError{field: "image_base64", rule: "base64"}
		}
		req.Image = img
	}
	return req, nil
}

// splitKeywords accepts repeated values and comma separated lists alike.
func splitKeywords(values []string) []string {
	var out []string
	for _, v := range values {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// stripDataURL removes a "data:image/png;base64," prefix.
func stripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

type fieldError struct {
	field string
	rule  string
}

func (e fieldError) Error() string { return e.field + ": " + e.rule }

func writeDecodeError(w http.ResponseWriter, err error) {
	var (
		maxBytes *http.MaxBytesError
		verrs    validator.ValidationErrors
		ferr     fieldError
	)
	switch {
	case errors.As(err, &maxBytes):
		response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("Request body exceeds %d bytes", maxBytes.Limit), nil)
	case errors.As(err, &verrs):
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[jsonFieldName(fe.Namespace())] = fe.Tag()
		}
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", details)
	case errors.As(err, &ferr):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body",
			map[string]string{ferr.field: ferr.rule})
	default:
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Malformed request body", nil)
	}
}

// jsonFieldName maps a validator namespace such as "analyzeRequest.Keywords[3]" to
// the request's JSON field name.
func jsonFieldName(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	switch ns {
	case "JobID":
		return "job_id"
	case "Keywords":
		return "keywords"
	case "ImageBase64":
		return "image_base64"
	case "ImageName":
		return "image_name"
	default:
		return strings.ToLower(ns)
	}
}
