package document

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/docgateway/internal/response"
	"github.com/radif/docgateway/internal/storage"
)

func newTestRouter(store storage.Storage) http.Handler {
	r := chi.NewRouter()
	r.Route("/documents", NewHandler(NewService(store, 0)).Routes)
	return r
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("description", "ignored"))
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func doUpload(t *testing.T, h http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadedKey(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var data uploadData
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &data))
	require.NotEmpty(t, data.Key)
	return data.Key
}

func TestHandler_UploadAndDownload(t *testing.T) {
	h := newTestRouter(storage.NewMemoryStorage("documents", ""))

	rec := doUpload(t, h, "my report.pdf", "%PDF-1.4 content")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	key := uploadedKey(t, rec)
	assert.True(t, strings.HasSuffix(key, "my report.pdf"))
	assert.Equal(t, "/documents/"+url.PathEscape(key), rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/documents/"+url.PathEscape(key), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="`+key+`"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "16", rec.Header().Get("Content-Length"))
	assert.Equal(t, "%PDF-1.4 content", rec.Body.String())
}

func TestHandler_UploadEmptyFile(t *testing.T) {
	h := newTestRouter(storage.NewMemoryStorage("documents", ""))

	rec := doUpload(t, h, "empty.txt", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	key := uploadedKey(t, rec)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+url.PathEscape(key), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestHandler_UploadBadRequests(t *testing.T) {
	h := newTestRouter(storage.NewMemoryStorage("documents", ""))

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"file":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		body, contentType := multipartBody(t, "attachment", "a.txt", "x")
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var env response.Envelope
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &env))
		assert.False(t, env.Success)
		assert.Contains(t, env.Error, "file")
	})

	t.Run("file without filename", func(t *testing.T) {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="file"`)
		pw, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, _ = io.WriteString(pw, "x")
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_DownloadMissing(t *testing.T) {
	h := newTestRouter(storage.NewMemoryStorage("documents", ""))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/nope.pdf", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestHandler_DeleteAndList(t *testing.T) {
	h := newTestRouter(storage.NewMemoryStorage("documents", ""))

	first := uploadedKey(t, doUpload(t, h, "a.txt", "a"))
	second := uploadedKey(t, doUpload(t, h, "b.txt", "b"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents/"+url.PathEscape(first), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A key that does not exist deletes fine.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents/never-existed", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var keys []string
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &keys))
	assert.Equal(t, []string{second}, keys)
}

func TestHandler_ListEmpty(t *testing.T) {
	h := newTestRouter(storage.NewMemoryStorage("documents", ""))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_PresignedURL(t *testing.T) {
	h := newTestRouter(storage.NewMemoryStorage("documents", ""))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/presigned-url/report.pdf", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	u, err := url.Parse(rec.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "/report.pdf", u.Path)
	assert.Equal(t, "86400", u.Query().Get("X-Amz-Expires"))
}

func TestHandler_StoreErrors(t *testing.T) {
	h := newTestRouter(&failingStore{err: errors.New("dial tcp: connection refused")})

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"list", http.MethodGet, "/documents", http.StatusBadGateway},
		{"download", http.MethodGet, "/documents/a.txt", http.StatusBadGateway},
		{"delete", http.MethodDelete, "/documents/a.txt", http.StatusBadGateway},
		{"presign", http.MethodGet, "/documents/presigned-url/a.txt", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}

	t.Run("upload", func(t *testing.T) {
		rec := doUpload(t, h, "a.txt", "x")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var env response.Envelope
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, ErrStoreWrite.Error(), env.Error)
	})
}

func TestHandler_RoundTripThroughLocation(t *testing.T) {
	filenames := []string{
		"50%off.pdf",
		"%41.pdf",
		"a+b.pdf",
		"issue #7.pdf",
		"what?.pdf",
		"résumé.pdf",
		"报告.pdf",
	}
	for _, name := range filenames {
		t.Run(name, func(t *testing.T) {
			h := newTestRouter(storage.NewMemoryStorage("documents", ""))

			rec := doUpload(t, h, name, "content of "+name)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			key := uploadedKey(t, rec)
			require.True(t, strings.HasSuffix(key, name), key)
			location := rec.Header().Get("Location")

			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, location, nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "content of "+name, rec.Body.String())
			assert.Equal(t, `attachment; filename="`+key+`"`, rec.Header().Get("Content-Disposition"))

			presign := "/documents/presigned-url/" + url.PathEscape(key)
			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, presign, nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			u, err := url.Parse(rec.Body.String())
			require.NoError(t, err)
			assert.Equal(t, "/"+key, u.Path)

			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, location, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, location, nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestHandler_DownloadOverEscapedPath(t *testing.T) {
	h := newTestRouter(storage.NewMemoryStorage("documents", ""))
	key := uploadedKey(t, doUpload(t, h, "A.pdf", "x"))

	// The client escapes a character that needs no escaping, so the request
	// carries a RawPath and the key must still resolve.
	escaped := strings.TrimSuffix(key, "A.pdf") + "%41.pdf"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+escaped, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "x", rec.Body.String())
}
