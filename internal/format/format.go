// Package format renders user-facing strings: byte sizes and per-type
// message icons.
package format

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// Size renders a byte count for chat messages, e.g. "1.5 MiB".
func Size(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

var iconByExt = map[string]string{}

func init() {
	register := func(icon string, exts ...string) {
		for _, ext := range exts {
			iconByExt[ext] = icon
		}
	}
	register("🖼️", "jpg", "jpeg", "png", "gif", "webp", "svg", "bmp", "tiff", "tif", "ico", "heic", "heif", "avif", "raw", "arw", "cr2", "nef", "dng")
	register("🎬", "mp4", "avi", "mov", "wmv", "flv", "mkv", "webm", "m4v", "3gp", "mpeg", "mpg", "ts", "rmvb", "rm", "asf", "mts", "m2ts", "vob", "ogv")
	register("🎵", "mp3", "wav", "ogg", "flac", "aac", "m4a", "wma", "opus", "mid", "midi", "ape", "amr", "aiff")
	register("📝", "pdf", "doc", "docx", "txt", "rtf", "md", "epub", "mobi", "azw3", "fb2", "djvu", "chm")
	register("📊", "xls", "xlsx", "ppt", "pptx", "csv", "tsv", "parquet", "avro", "mat", "hdf5", "h5", "ods", "odp")
	register("🗜️", "zip", "rar", "7z", "tar", "gz", "bz2", "xz", "tgz", "tbz2", "txz", "cab", "lzh")
	register("⚙️", "exe", "msi", "apk", "ipa", "dmg", "pkg", "deb", "rpm", "snap", "appimage", "iso", "img", "vdi", "vmdk", "vhd", "bin")
	register("🌐", "html", "htm", "css", "js", "ts", "jsx", "tsx", "php", "py", "rb", "java", "c", "cpp", "cs", "go", "swift", "kt", "rs", "lua", "sh", "sql", "yaml", "yml", "toml", "json", "xml")
	register("🔤", "ttf", "otf", "woff", "woff2", "eot")
	register("🎨", "obj", "fbx", "blend", "stl", "psd", "ai", "eps", "sketch", "fig", "gltf", "glb")
}

// Icon picks a message icon from the MIME type when it is informative,
// falling back to the filename extension.
func Icon(filename, mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "🖼️"
	case strings.HasPrefix(mimeType, "video/"):
		return "🎬"
	case strings.HasPrefix(mimeType, "audio/"):
		return "🎵"
	case strings.Contains(mimeType, "pdf"),
		strings.Contains(mimeType, "msword"),
		strings.Contains(mimeType, "document"),
		strings.HasPrefix(mimeType, "text/"):
		return "📝"
	case strings.Contains(mimeType, "excel"),
		strings.Contains(mimeType, "sheet"),
		strings.Contains(mimeType, "presentation"):
		return "📊"
	case strings.Contains(mimeType, "zip"), strings.Contains(mimeType, "compressed"):
		return "🗜️"
	case strings.Contains(mimeType, "html"):
		return "🌐"
	}

	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		if icon, ok := iconByExt[strings.ToLower(filename[idx+1:])]; ok {
			return icon
		}
	}
	return "📄"
}
