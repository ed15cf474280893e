package relay

import (
	"strings"
)

// mimeOverrides fixes MIME types that arrive absent or ambiguous for
// extensions the file beds are picky about. Filenames pass through
// unmodified; only the declared type changes.
var mimeOverrides = map[string]string{
	"exe": "application/octet-stream",
	"msi": "application/octet-stream",
	"dmg": "application/octet-stream",
	"pkg": "application/octet-stream",
	"deb": "application/octet-stream",
	"rpm": "application/octet-stream",
	"snap": "application/octet-stream",
	"flatpak": "application/octet-stream",
	"appimage": "application/octet-stream",

	"apk": "application/vnd.android.package-archive",
	"ipa": "application/vnd.android.package-archive",

	"zip":  "application/zip",
	"rar":  "application/x-compressed",
	"7z":   "application/x-compressed",
	"tar":  "application/x-compressed",
	"gz":   "application/x-compressed",
	"bz2":  "application/x-compressed",
	"xz":   "application/x-compressed",
	"tgz":  "application/x-compressed",
	"tbz2": "application/x-compressed",
	"txz":  "application/x-compressed",

	"iso":  "application/octet-stream",
	"img":  "application/octet-stream",
	"vdi":  "application/octet-stream",
	"vmdk": "application/octet-stream",
	"vhd":  "application/octet-stream",
	"vhdx": "application/octet-stream",
	"ova":  "application/octet-stream",
	"ovf":  "application/octet-stream",
}

func normalizeMIME(fileName, declared string) string {
	ext := ""
	if idx := strings.LastIndex(fileName, "."); idx >= 0 {
		ext = strings.ToLower(fileName[idx+1:])
	}
	if override, ok := mimeOverrides[ext]; ok {
		return override
	}
	if declared == "" {
		return "application/octet-stream"
	}
	return declared
}
