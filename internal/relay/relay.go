// Package relay drives one attachment through the pipeline: resolve and
// download from the source transport, guard the size, upload to the sink,
// normalize the response, fold the outcome into the ledger, and report back
// to the chat by editing the progress message in place.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sdko-org/filebed-relay/internal/format"
	"github.com/sdko-org/filebed-relay/internal/ledger"
	"github.com/sdko-org/filebed-relay/internal/sink"
	"github.com/sdko-org/filebed-relay/internal/telegram"
	"github.com/sirupsen/logrus"
)

var (
	ErrSourceUnavailable   = errors.New("source transport unavailable")
	ErrSizeExceeded        = errors.New("file exceeds the size ceiling")
	ErrTransportFailure    = errors.New("sink transport failure")
	ErrUnparseableResponse = errors.New("unparseable sink response")
	ErrLinkNotFound        = errors.New("no link in sink response")
)

// State tracks pipeline progress for logging; Succeeded and Failed are the
// terminal states, each triggering exactly one ledger write and one message
// edit.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateSizeChecked State = "size_checked"
	StateUploading   State = "uploading"
	StateNormalizing State = "normalizing"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// Attachment is one classified inbound file.
type Attachment struct {
	Kind     string // file-type category, see models
	FileID   string
	FileName string
	MIMEType string
	Caption  string
}

type ChatContext struct {
	ChatID int64
	UserID int64
}

// Source resolves and fetches attachment payloads from the chat platform.
type Source interface {
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
	TempFileURL(filePath string) string
}

// Notifier sends and edits chat messages.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
}

// Recorder folds relay outcomes into the usage ledger.
type Recorder interface {
	Record(ctx context.Context, id int64, ev ledger.Event) error
}

type Outcome struct {
	State State
	Link  *sink.ExtractedLink
	Err   error
}

// SizeGuard enforces the configured byte ceiling. A payload of exactly the
// ceiling passes.
type SizeGuard struct {
	Limit int64
}

func (g SizeGuard) Allow(size int64) bool {
	return size <= g.Limit
}

type Relay struct {
	source          Source
	uploader        sink.Uploader
	recorder        Recorder
	notifier        Notifier
	guard           SizeGuard
	downloadTimeout time.Duration
	uploadTimeout   time.Duration
	log             *logrus.Entry
}

type Options struct {
	MaxFileSize     int64
	DownloadTimeout time.Duration
	UploadTimeout   time.Duration
}

func New(logger *logrus.Logger, source Source, uploader sink.Uploader, recorder Recorder, notifier Notifier, opts Options) *Relay {
	return &Relay{
		source:          source,
		uploader:        uploader,
		recorder:        recorder,
		notifier:        notifier,
		guard:           SizeGuard{Limit: opts.MaxFileSize},
		downloadTimeout: opts.DownloadTimeout,
		uploadTimeout:   opts.UploadTimeout,
		log:             logger.WithField("component", "relay"),
	}
}

// Handle runs the whole pipeline for one attachment. Every failure is
// converted into a user-facing message; nothing escapes to the webhook
// handler.
func (r *Relay) Handle(ctx context.Context, att Attachment, chat ChatContext) Outcome {
	log := r.log.WithFields(logrus.Fields{
		"chat_id":   chat.ChatID,
		"file_name": att.FileName,
		"kind":      att.Kind,
	})
	log.WithField("state", StatePending).Info("Relay started")

	progressID := r.sendProgress(ctx, att, chat)

	file, err := r.source.GetFile(ctx, att.FileID)
	if err != nil {
		log.WithError(err).Warn("Source metadata lookup failed")
		return r.fail(ctx, att, chat, progressID, 0, ErrSourceUnavailable,
			"❌ Could not fetch the file from Telegram, please try again later.\n\nTry:\n1. Resending the file\n2. Compressing it first if it is large")
	}

	log.WithField("state", StateDownloading).Debug("Downloading payload")
	dlCtx, cancel := context.WithTimeout(ctx, r.downloadTimeout)
	data, err := r.source.DownloadFile(dlCtx, file.FilePath)
	cancel()
	if err != nil {
		log.WithError(err).Warn("Payload download failed")
		return r.fail(ctx, att, chat, progressID, 0, ErrSourceUnavailable,
			"❌ Downloading the file failed, please try again later.\n\nTry:\n1. Resending the file\n2. Compressing it first if it is large")
	}

	size := int64(len(data))
	if !r.guard.Allow(size) {
		log.WithFields(logrus.Fields{"state": StateSizeChecked, "size": size}).Info("Payload over size ceiling")
		return r.fail(ctx, att, chat, progressID, size, ErrSizeExceeded,
			fmt.Sprintf("⚠️ File too large (%s), exceeds the %s limit and was not uploaded.",
				format.Size(size), format.Size(r.guard.Limit)))
	}
	log.WithFields(logrus.Fields{"state": StateSizeChecked, "size": size}).Debug("Size check passed")

	mimeType := normalizeMIME(att.FileName, att.MIMEType)

	log.WithField("state", StateUploading).Debug("Uploading to sink")
	upCtx, cancel := context.WithTimeout(ctx, r.uploadTimeout)
	result, err := r.uploader.Upload(upCtx, sink.UploadRequest{
		FileName: att.FileName,
		MIMEType: mimeType,
		Data:     data,
	})
	cancel()
	if err != nil {
		var rejected *sink.ErrUploadRejected
		if errors.As(err, &rejected) {
			log.WithError(err).Warn("Sink rejected the upload")
			return r.fail(ctx, att, chat, progressID, size, ErrUnparseableResponse,
				fmt.Sprintf("❌ The upload service rejected the file: %s", rejected.Message))
		}
		log.WithError(err).Warn("Sink transport failure")
		return r.fail(ctx, att, chat, progressID, size, ErrTransportFailure,
			"❌ Uploading the file failed.\n\nTry:\n1. Resending the file\n2. Compressing it first if it is large")
	}

	log.WithField("state", StateNormalizing).Debug("Normalizing sink response")
	if result.Link == nil || result.Link.URL == "" {
		text := fmt.Sprintf("⚠️ Could not extract a link from the upload service. Raw response (first 200 chars):\n%s",
			clip(result.RawBody, 200))
		if file.FilePath != "" {
			text += fmt.Sprintf("\n\nTemporary Telegram link (expires after a while):\n%s",
				r.source.TempFileURL(file.FilePath))
		}
		log.Warn("No link extracted from sink response")
		return r.fail(ctx, att, chat, progressID, size, ErrLinkNotFound, text)
	}

	link := result.Link
	if link.FileName == "" {
		link.FileName = att.FileName
	}
	if link.FileSize == 0 {
		link.FileSize = size
	}

	r.record(ctx, chat, ledger.Event{
		FileType:    att.Kind,
		FileSize:    link.FileSize,
		Success:     true,
		FileName:    link.FileName,
		URL:         link.URL,
		Description: att.Caption,
	})

	text := fmt.Sprintf("✅ Upload successful!\n\n📄 File: %s\n", link.FileName)
	if att.Caption != "" {
		text += fmt.Sprintf("📝 Description: %s\n", att.Caption)
	}
	text += fmt.Sprintf("📦 Size: %s\n\n🔗 URL: %s", format.Size(link.FileSize), link.URL)
	r.finish(ctx, chat, progressID, text)

	log.WithField("state", StateSucceeded).Info("Relay finished")
	return Outcome{State: StateSucceeded, Link: link}
}

func (r *Relay) sendProgress(ctx context.Context, att Attachment, chat ChatContext) int64 {
	icon := format.Icon(att.FileName, att.MIMEType)
	text := fmt.Sprintf("%s Processing your file \"%s\", please wait...", icon, att.FileName)
	id, err := r.notifier.SendMessage(ctx, chat.ChatID, text)
	if err != nil {
		r.log.WithError(err).Warn("Progress message failed")
		return 0
	}
	return id
}

// fail records the failure (when the size is known it is included) and edits
// the progress message into the stage-specific report. One ledger write, one
// edit.
func (r *Relay) fail(ctx context.Context, att Attachment, chat ChatContext, progressID int64, size int64, stage error, text string) Outcome {
	r.record(ctx, chat, ledger.Event{
		FileType: att.Kind,
		FileSize: size,
		Success:  false,
		FileName: att.FileName,
	})
	r.finish(ctx, chat, progressID, text)
	return Outcome{State: StateFailed, Err: stage}
}

// record logs and swallows ledger errors: a ledger outage must not block the
// user-visible report.
func (r *Relay) record(ctx context.Context, chat ChatContext, ev ledger.Event) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, chat.UserID, ev); err != nil {
		r.log.WithError(err).WithField("user_id", chat.UserID).Warn("Ledger write failed")
	}
}

func (r *Relay) finish(ctx context.Context, chat ChatContext, progressID int64, text string) {
	var err error
	if progressID != 0 {
		err = r.notifier.EditMessageText(ctx, chat.ChatID, progressID, text)
	} else {
		_, err = r.notifier.SendMessage(ctx, chat.ChatID, text)
	}
	if err != nil {
		r.log.WithError(err).Warn("Result message failed")
	}
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
