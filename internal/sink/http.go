package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPSink uploads via multipart POST to <base>/upload with
// returnFormat=full. The auth code, when present, is sent both as a bearer
// header and a query parameter because deployed file beds expect either.
type HTTPSink struct {
	httpClient *http.Client
	baseURL    string
	authCode   string
	log        *logrus.Entry
}

func NewHTTPSink(logger *logrus.Logger, baseURL, authCode string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		authCode:   authCode,
		log:        logger.WithField("component", "http_sink"),
	}
}

func (s *HTTPSink) Upload(ctx context.Context, req UploadRequest) (*Result, error) {
	uploadURL, err := s.uploadURL()
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := createFilePart(writer, req.FileName, req.MIMEType)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if s.authCode != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.authCode)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// Capture the raw text before any parsing so failed parses can still
	// be inspected or regex-scanned.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"duration":    time.Since(start),
		"file_name":   req.FileName,
		"size":        len(req.Data),
	}).Info("Upload request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{RawBody: string(raw)},
			fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, excerpt(raw, 200))
	}

	link, err := Normalize(raw, s.baseURL)
	if err != nil {
		return &Result{RawBody: string(raw)}, err
	}
	return &Result{Link: link, RawBody: string(raw)}, nil
}

func (s *HTTPSink) uploadURL() (string, error) {
	u, err := url.Parse(s.baseURL + "/upload")
	if err != nil {
		return "", fmt.Errorf("invalid sink base URL: %w", err)
	}
	q := u.Query()
	q.Set("returnFormat", "full")
	if s.authCode != "" {
		q.Set("authCode", s.authCode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func createFilePart(writer *multipart.Writer, fileName, mimeType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", mimeType)
	return writer.CreatePart(header)
}

func excerpt(raw []byte, limit int) string {
	s := string(raw)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
