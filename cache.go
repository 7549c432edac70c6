package rubyshd

import (
	"strings"
	"time"
)

const (
	maxFileCacheEntries = 512
	fileCacheLongTTL    = 4 * time.Hour
	fileCacheShortTTL   = 10 * time.Second

	maxDataCacheEntries = 512
	dataCacheTTL        = 10 * time.Second
)

// Content and data files are expected to change while the server runs, so
// they expire on the short TTL; everything else (images, archives) keeps the
// long one.
var shortTTLExtensions = []string{`hbs`, `html`, `gmi`, `md`, `json`}

// CachedFile is a filesystem read frozen at cache-fill time.  It is immutable
// once cached and replaced wholesale on TTL expiry.
type CachedFile struct {
	Data       []byte
	CreatedAt  time.Time
	ModifiedAt time.Time
}

func fileCacheTTLForPath(path string) time.Duration {
	var ext = strings.TrimPrefix(strings.ToLower(pathExtension(path)), `.`)

	for _, candidate := range shortTTLExtensions {
		if ext == candidate {
			return fileCacheShortTTL
		}
	}

	return fileCacheLongTTL
}

func pathExtension(path string) string {
	if i := strings.LastIndex(path, `.`); i >= 0 && !strings.ContainsRune(path[i:], '/') {
		return path[i:]
	}

	return ``
}
