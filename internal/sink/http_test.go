package sink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestHTTPSinkUpload(t *testing.T) {
	var gotAuth, gotQuery, gotFormat string
	var gotFileName, gotMIME string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("authCode")
		gotFormat = r.URL.Query().Get("returnFormat")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFileName = header.Filename
		gotMIME = header.Header.Get("Content-Type")
		gotBody, err = io.ReadAll(file)
		require.NoError(t, err)

		w.Write([]byte(`{"success":true,"url":"` + "http://x/a.jpg" + `"}`))
	}))
	defer srv.Close()

	s := NewHTTPSink(testLogger(), srv.URL, "secret", 10*time.Second)
	result, err := s.Upload(context.Background(), UploadRequest{
		FileName: "a.jpg",
		MIMEType: "image/jpeg",
		Data:     []byte("payload"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Link)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "secret", gotQuery)
	assert.Equal(t, "full", gotFormat)
	assert.Equal(t, "a.jpg", gotFileName)
	assert.Equal(t, "image/jpeg", gotMIME)
	assert.Equal(t, []byte("payload"), gotBody)
	assert.Equal(t, "http://x/a.jpg", result.Link.URL)
}

func TestHTTPSinkUploadNoAuthCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("authCode"))
		w.Write([]byte(`{"url":"http://x/b.png"}`))
	}))
	defer srv.Close()

	s := NewHTTPSink(testLogger(), srv.URL, "", 10*time.Second)
	result, err := s.Upload(context.Background(), UploadRequest{FileName: "b.png", MIMEType: "image/png", Data: []byte{1}})
	require.NoError(t, err)
	require.NotNil(t, result.Link)
	assert.Equal(t, "http://x/b.png", result.Link.URL)
}

func TestHTTPSinkNon2xxKeepsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	s := NewHTTPSink(testLogger(), srv.URL, "", 10*time.Second)
	result, err := s.Upload(context.Background(), UploadRequest{FileName: "c.bin", MIMEType: "application/octet-stream", Data: []byte{1}})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.RawBody, "upstream exploded")
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSinkRejectedUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"bad extension"}`))
	}))
	defer srv.Close()

	s := NewHTTPSink(testLogger(), srv.URL, "", 10*time.Second)
	_, err := s.Upload(context.Background(), UploadRequest{FileName: "d.xyz", MIMEType: "application/octet-stream", Data: []byte{1}})
	require.Error(t, err)
	var rejected *ErrUploadRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "bad extension", rejected.Message)
}

func TestHTTPSinkUnparseableResponseYieldsNoLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"done"}`))
	}))
	defer srv.Close()

	s := NewHTTPSink(testLogger(), srv.URL, "", 10*time.Second)
	result, err := s.Upload(context.Background(), UploadRequest{FileName: "e.txt", MIMEType: "text/plain", Data: []byte{1}})
	require.NoError(t, err)
	assert.Nil(t, result.Link)
	assert.Contains(t, result.RawBody, "done")
}
