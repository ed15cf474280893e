package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSize(t *testing.T) {
	assert.Equal(t, "0 B", Size(0))
	assert.Equal(t, "512 B", Size(512))
	assert.Equal(t, "2.0 KiB", Size(2048))
	assert.Equal(t, "20 MiB", Size(20*1024*1024))
	assert.Equal(t, "0 B", Size(-1))
}

func TestIconFromMIME(t *testing.T) {
	assert.Equal(t, "🖼️", Icon("whatever", "image/png"))
	assert.Equal(t, "🎬", Icon("whatever", "video/mp4"))
	assert.Equal(t, "🎵", Icon("whatever", "audio/flac"))
	assert.Equal(t, "📝", Icon("whatever", "application/pdf"))
	assert.Equal(t, "🗜️", Icon("whatever", "application/zip"))
}

func TestIconFromExtension(t *testing.T) {
	assert.Equal(t, "⚙️", Icon("setup.exe", ""))
	assert.Equal(t, "🌐", Icon("main.go", "application/octet-stream"))
	assert.Equal(t, "🎨", Icon("model.blend", ""))
	assert.Equal(t, "📄", Icon("mystery.qqq", ""))
	assert.Equal(t, "📄", Icon("noextension", ""))
}
