// package takeout parses Google Takeout zip exports: it pairs media entries
// with their JSON sidecars, decodes favorite flags and capture times, and
// materializes favorite media through hashed temporary files.
package takeout

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/favark/favark/internal/shared"
)

const sidecarSuffix = ".json"

// Entry is one favorite-flagged media entry resolved from an archive.
type Entry struct {
	MediaPath string // path of the media entry inside the zip
	MetaPath  string // path of the JSON sidecar
	Filename  string // upload name (sidecar title, else media basename)
	MimeType  string
	Taken     time.Time      // capture time in the extractor's zone
	Meta      map[string]any // full decoded sidecar, embedded as provenance

	file *zip.File
}

// Open returns a reader over the media bytes.
func (e Entry) Open() (io.ReadCloser, error) {
	return e.file.Open()
}

// IsVideo selects the resumable upload path for this entry.
func (e Entry) IsVideo() bool {
	return strings.HasPrefix(e.MimeType, "video/")
}

// Extractor walks Takeout archives. One instance is reusable across archives.
type Extractor struct {
	logger *log.Logger
	loc    *time.Location
}

// NewExtractor creates an extractor resolving capture dates in loc.
func NewExtractor(logger *log.Logger, loc *time.Location) *Extractor {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Extractor{logger: logger, loc: loc}
}

// Process opens the archive and invokes fn for every favorite-flagged entry,
// in sidecar order. Non-favorite sidecars are skipped without touching media
// bytes. Errors returned by fn stop the walk; per-entry validation problems
// (unresolvable media, undecodable time) are reported through fn's entry
// error parameter so the caller can isolate them.
func (x *Extractor) Process(ctx context.Context, zipPath string, fn func(Entry, error) error) (favorites int, err error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	byPath := make(map[string]*zip.File, len(zr.File))
	var sidecars []*zip.File
	for _, f := range zr.File {
		byPath[f.Name] = f
		if strings.HasSuffix(strings.ToLower(f.Name), sidecarSuffix) {
			sidecars = append(sidecars, f)
		}
	}

	for _, sc := range sidecars {
		if err := ctx.Err(); err != nil {
			return favorites, err
		}

		meta, ok := x.decodeSidecar(sc)
		if !ok {
			continue
		}
		if !ParseFavorite(meta) {
			continue
		}
		favorites++

		entry, entryErr := x.resolve(zr.File, byPath, sc, meta)
		if err := fn(entry, entryErr); err != nil {
			return favorites, err
		}
	}

	return favorites, nil
}

// decodeSidecar parses a sidecar into a generic map; undecodable or
// non-object sidecars are skipped, matching the original's tolerance for the
// stray JSON files Takeout includes.
func (x *Extractor) decodeSidecar(sc *zip.File) (map[string]any, bool) {
	r, err := sc.Open()
	if err != nil {
		x.logger.Debug("skipping unreadable sidecar", "path", sc.Name, "err", err)
		return nil, false
	}
	defer r.Close()

	var meta map[string]any
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		x.logger.Debug("skipping undecodable sidecar", "path", sc.Name, "err", err)
		return nil, false
	}
	return meta, meta != nil
}

// resolve locates the media entry for a favorite sidecar and decodes its
// capture time. Validation failures come back as the entry error.
func (x *Extractor) resolve(all []*zip.File, byPath map[string]*zip.File, sc *zip.File, meta map[string]any) (Entry, error) {
	taken, ok := ParseTakenTime(meta, x.loc)
	if !ok {
		return Entry{MetaPath: sc.Name}, fmt.Errorf("%w: sidecar %s", shared.ErrNoTakenTime, sc.Name)
	}

	base := sc.Name[:len(sc.Name)-len(sidecarSuffix)]

	media := byPath[base]
	if media == nil {
		media = matchByStem(all, path.Base(base))
	}
	if media == nil {
		return Entry{MetaPath: sc.Name}, fmt.Errorf("%w: sidecar %s", shared.ErrMediaNotFound, sc.Name)
	}

	filename := path.Base(media.Name)
	if title, ok := meta["title"].(string); ok && strings.TrimSpace(title) != "" {
		filename = title
	}

	mime := "application/octet-stream"
	for _, key := range []string{"mimeType", "mime_type"} {
		if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
			mime = strings.TrimSpace(v)
			break
		}
	}

	return Entry{
		MediaPath: media.Name,
		MetaPath:  sc.Name,
		Filename:  SafeFilename(filename),
		MimeType:  mime,
		Taken:     taken,
		Meta:      meta,
		file:      media,
	}, nil
}

// matchByStem falls back to matching by filename stem across the whole
// archive. Duplicate stems in different directories are disambiguated by
// taking the lexicographically smallest path, so resolution is deterministic
// regardless of archive entry order.
func matchByStem(all []*zip.File, stem string) *zip.File {
	var candidates []string
	byName := make(map[string]*zip.File)
	for _, f := range all {
		if path.Base(f.Name) == stem {
			candidates = append(candidates, f.Name)
			byName[f.Name] = f
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Strings(candidates)
	return byName[candidates[0]]
}

// Materialize streams the entry's media bytes into a temporary file under
// dir while computing the SHA-256 content hash. The caller owns the returned
// path; on error nothing is left behind.
func Materialize(entry Entry, dir string) (tmpPath, hexDigest string, err error) {
	src, err := entry.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open media entry %s: %w", entry.MediaPath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, "takeout_item_*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("failed to extract %s: %w", entry.MediaPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return tmp.Name(), hex.EncodeToString(h.Sum(nil)), nil
}

// favoriteFields is the ordered precedence list for the favorite flag; the
// starred variants are consulted only when every primary field is absent.
var favoriteFields = []string{"isFavorite", "favorite", "favorited", "is_favorite"}
var starredFields = []string{"starred", "isStarred"}

// ParseFavorite decodes the favorite flag from a sidecar. First present field
// wins; each accepts booleans, truthy strings, or numbers. All absent decodes
// to not-favorite.
func ParseFavorite(meta map[string]any) bool {
	for _, key := range favoriteFields {
		if v, ok := meta[key]; ok {
			return truthy(v)
		}
	}
	for _, key := range starredFields {
		if v, ok := meta[key]; ok {
			return truthy(v)
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y":
			return true
		}
		return false
	case float64: // JSON numbers decode to float64
		return t != 0
	case int:
		return t != 0
	}
	return false
}

// takenTimestampFields is the ordered precedence list of nested epoch-second
// capture-time fields.
var takenTimestampFields = []string{"photoTakenTime", "creationTime", "takenTime"}

// ParseTakenTime decodes the capture time from a sidecar: epoch-second
// timestamps in precedence order, then the RFC 3339 mediaMetadata fallback.
func ParseTakenTime(meta map[string]any, loc *time.Location) (time.Time, bool) {
	for _, key := range takenTimestampFields {
		obj, ok := meta[key].(map[string]any)
		if !ok {
			continue
		}
		ts, ok := obj["timestamp"]
		if !ok {
			continue
		}
		if sec, ok := epochSeconds(ts); ok {
			return time.Unix(sec, 0).In(loc), true
		}
	}

	if mm, ok := meta["mediaMetadata"].(map[string]any); ok {
		if ct, ok := mm["creationTime"].(string); ok && ct != "" {
			if t, err := time.Parse(time.RFC3339, ct); err == nil {
				return t.In(loc), true
			}
		}
	}

	return time.Time{}, false
}

func epochSeconds(v any) (int64, bool) {
	switch t := v.(type) {
	case string:
		sec, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return sec, true
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	}
	return 0, false
}

// SafeFilename strips path separators so archive titles cannot escape the
// destination folder.
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	return name
}
