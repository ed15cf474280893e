package handlers

import (
	"testing"

	"github.com/sdko-org/filebed-relay/internal/models"
	"github.com/sdko-org/filebed-relay/internal/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPhoto(t *testing.T) {
	att, ok := classify(&telegram.Message{
		Photo:   []telegram.PhotoSize{{FileID: "small"}, {FileID: "mid"}, {FileID: "large"}},
		Caption: "sunset",
	})
	require.True(t, ok)
	assert.Equal(t, models.TypeImage, att.Kind)
	// The largest rendition is the last one.
	assert.Equal(t, "large", att.FileID)
	assert.Equal(t, "image/jpeg", att.MIMEType)
	assert.Contains(t, att.FileName, "image_")
	assert.Contains(t, att.FileName, ".jpg")
	assert.Equal(t, "sunset", att.Caption)
}

func TestClassifyVideo(t *testing.T) {
	att, ok := classify(&telegram.Message{
		Video: &telegram.Video{FileID: "v1", FileName: "clip.mp4", MIMEType: "video/mp4"},
	})
	require.True(t, ok)
	assert.Equal(t, models.TypeVideo, att.Kind)
	assert.Equal(t, "clip.mp4", att.FileName)

	att, ok = classify(&telegram.Message{Video: &telegram.Video{FileID: "v2"}})
	require.True(t, ok)
	assert.Contains(t, att.FileName, "video_")
	assert.Equal(t, "video/mp4", att.MIMEType)
}

func TestClassifyAudioPrefersTitle(t *testing.T) {
	att, ok := classify(&telegram.Message{
		Audio: &telegram.Audio{FileID: "a1", Title: "My Song", FileName: "track01.mp3"},
	})
	require.True(t, ok)
	assert.Equal(t, models.TypeAudio, att.Kind)
	assert.Equal(t, "My Song", att.FileName)
	assert.Equal(t, "audio/mpeg", att.MIMEType)
}

func TestClassifyAnimation(t *testing.T) {
	att, ok := classify(&telegram.Message{
		Animation: &telegram.Animation{FileID: "g1", FileName: "funny.gif", MIMEType: "image/gif"},
	})
	require.True(t, ok)
	assert.Equal(t, models.TypeAnimation, att.Kind)
	assert.Equal(t, "funny.gif", att.FileName)
}

func TestClassifyDocumentReclassification(t *testing.T) {
	cases := []struct {
		name string
		doc  telegram.Document
		kind string
	}{
		{"video mime", telegram.Document{FileID: "d", FileName: "movie.bin", MIMEType: "video/x-matroska"}, models.TypeVideo},
		{"video extension", telegram.Document{FileID: "d", FileName: "Movie.MKV"}, models.TypeVideo},
		{"audio mime", telegram.Document{FileID: "d", FileName: "song.bin", MIMEType: "audio/flac"}, models.TypeAudio},
		{"audio extension", telegram.Document{FileID: "d", FileName: "song.FLAC"}, models.TypeAudio},
		{"animation extension", telegram.Document{FileID: "d", FileName: "sticker.webp"}, models.TypeAnimation},
		{"plain document", telegram.Document{FileID: "d", FileName: "report.pdf", MIMEType: "application/pdf"}, models.TypeDocument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			att, ok := classify(&telegram.Message{Document: &tc.doc})
			require.True(t, ok)
			assert.Equal(t, tc.kind, att.Kind)
		})
	}
}

func TestClassifyDocumentWithoutName(t *testing.T) {
	att, ok := classify(&telegram.Message{Document: &telegram.Document{FileID: "d"}})
	require.True(t, ok)
	assert.Equal(t, models.TypeDocument, att.Kind)
	assert.Contains(t, att.FileName, "file_")
	assert.Equal(t, "application/octet-stream", att.MIMEType)
}

func TestClassifyTextOnlyRejected(t *testing.T) {
	_, ok := classify(&telegram.Message{Text: "hello"})
	assert.False(t, ok)
}

func TestFormatUserStats(t *testing.T) {
	out := formatUserStats(&models.UserStats{
		TotalUploads:      5,
		SuccessfulUploads: 4,
		FailedUploads:     1,
		TotalSize:         1 << 20,
		FileTypes:         map[string]int64{models.TypeImage: 3, models.TypeVideo: 2},
	})
	assert.Contains(t, out, "Uploads: 5")
	assert.Contains(t, out, "1.0 MiB")
	assert.Contains(t, out, "image: 3")
	assert.Contains(t, out, "video: 2")
}
