package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/marketbridge/platform/internal/blob"
	svcerrors "github.com/marketbridge/platform/internal/errors"
	"github.com/marketbridge/platform/internal/httputil"
)

// maxUploadBytes bounds multipart request bodies.
const maxUploadBytes = 20 << 20

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return httputil.DecodeJSON(w, r, dst)
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// form is a parsed multipart request.
type form struct {
	r *http.Request
}

func parseForm(w http.ResponseWriter, r *http.Request) (*form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, svcerrors.BadRequest("invalid multipart form: " + err.Error())
	}
	return &form{r: r}, nil
}

// String returns the value of key, or nil when the field was not sent.
func (f *form) String(key string) *string {
	values, ok := f.r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// Value returns the value of key or "".
func (f *form) Value(key string) string {
	if v := f.String(key); v != nil {
		return *v
	}
	return ""
}

// Float returns key parsed as a number, or nil when the field was not sent.
func (f *form) Float(key string) (*float64, error) {
	raw := f.String(key)
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil {
		return nil, svcerrors.BadRequest(key + " must be a number")
	}
	return &v, nil
}

// File returns the uploaded file field, or nil when none was sent.
func (f *form) File(field string) (*blob.File, error) {
	file, header, err := f.r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, svcerrors.BadRequest("invalid " + field + " upload: " + err.Error())
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, svcerrors.BadRequest("read " + field + " upload: " + err.Error())
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &blob.File{Name: header.Filename, ContentType: contentType, Data: data}, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, svcerrors.BadRequest(key + " must be a non-negative integer")
	}
	return v, nil
}
