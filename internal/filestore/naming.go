package filestore

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	coverSuffix     = "_cover.jpg"
	thumbnailInfix  = "_thumb_"
	thumbnailSuffix = ".webp"
	maxExtLength    = 16
)

// GenerateName returns a collision-free asset name "<owner>_<uuid><ext>",
// keeping the original file extension when it is safe to reuse.
func GenerateName(owner, original string) string {
	return owner + "_" + uuid.NewString() + safeExt(original)
}

// CoverName derives the cover asset name for an audio asset.
func CoverName(audioName string) string {
	return stem(audioName) + coverSuffix
}

// ThumbnailName derives the thumbnail asset name for a cover and size label.
func ThumbnailName(coverName, size string) string {
	return stem(coverName) + thumbnailInfix + size + thumbnailSuffix
}

// OwnedBy reports whether name was generated by GenerateName for owner.
func OwnedBy(name, owner string) bool {
	prefix := owner + "_"
	if owner == "" || !strings.HasPrefix(name, prefix) {
		return false
	}
	rest := name[len(prefix):]
	if len(rest) < 36 {
		return false
	}
	if _, err := uuid.Parse(rest[:36]); err != nil {
		return false
	}
	ext := rest[36:]
	return ext == "" || (strings.HasPrefix(ext, ".") && safeExt(ext) == ext)
}

// CoverOwnedBy reports whether a cover name belongs to owner, either as an
// uploaded cover or as one extracted from owner's audio.
func CoverOwnedBy(name, owner string) bool {
	if OwnedBy(name, owner) {
		return true
	}
	base, ok := strings.CutSuffix(name, coverSuffix)
	return ok && OwnedBy(base, owner)
}

// stem cuts only an extension GenerateName could have produced, so a dot in
// the owner part of an extension-less name is kept.
func stem(name string) string {
	if safeExt(name) == "" {
		return name
	}
	return name[:len(name)-len(filepath.Ext(name))]
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > maxExtLength {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// validName rejects anything that could resolve outside the kind directory.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
