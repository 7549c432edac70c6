package rubyshd

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ghetzel/go-stockutil/log"
	"github.com/ghetzel/go-stockutil/typeutil"
)

// PageMetadata describes one content page for listing purposes, derived from
// its front matter.
type PageMetadata struct {
	Path        string
	Protocol    Protocol
	Title       string
	Description string
	Date        time.Time
	IsPost      bool
}

func (self PageMetadata) templateData() map[string]interface{} {
	return map[string]interface{}{
		`path`:        self.Path,
		`protocol`:    self.Protocol.String(),
		`title`:       self.Title,
		`description`: self.Description,
		`date`:        self.Date.UTC().Format(time.RFC3339),
		`is_post`:     self.IsPost,
	}
}

type pageEntry struct {
	meta      PageMetadata
	markup    Markup
	anyMarkup bool
}

// postIndex is the in-memory index of page metadata backing the posts
// listing.  It refreshes lazily on the same short TTL as the file cache
// instead of re-walking the content tree on every request.
type postIndex struct {
	context     *ServerContext
	lock        sync.Mutex
	pages       []pageEntry
	refreshedAt time.Time
}

func newPostIndex(context *ServerContext) *postIndex {
	return &postIndex{
		context: context,
	}
}

// forProtocol returns the post pages reachable over the given protocol,
// newest first.
func (self *postIndex) forProtocol(protocol Protocol) []PageMetadata {
	self.lock.Lock()
	defer self.lock.Unlock()

	if time.Since(self.refreshedAt) >= fileCacheShortTTL {
		self.refresh()
	}

	var posts []PageMetadata

	for _, page := range self.pages {
		if !page.meta.IsPost {
			continue
		}

		if !page.anyMarkup && page.markup != DefaultMarkupForProtocol(protocol) {
			continue
		}

		var meta = page.meta
		meta.Protocol = protocol
		posts = append(posts, meta)
	}

	sort.Slice(posts, func(i int, j int) bool {
		return posts[i].Date.After(posts[j].Date)
	})

	return posts
}

func (self *postIndex) refresh() {
	var config = self.context.Config()
	var pages []pageEntry

	var err = filepath.WalkDir(config.PublicRootPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		var page, ok = self.scanPage(path)

		if ok {
			pages = append(pages, page)
		}

		return nil
	})

	if err != nil {
		log.Errorf("error walking content tree: %v", err)
		return
	}

	self.pages = pages
	self.refreshedAt = time.Now()
	log.Debugf("post index refreshed: %d pages", len(pages))
}

// scanPage reads the front matter of one content file and derives its page
// metadata.  Non-content files and unlisted pages yield no entry.
func (self *postIndex) scanPage(path string) (pageEntry, bool) {
	var config = self.context.Config()
	var base = strings.TrimSuffix(path, TemplateSuffix)
	var isContent = strings.HasSuffix(path, TemplateSuffix)

	var markup Markup
	var anyMarkup = true

	if ext := strings.TrimPrefix(pathExtension(base), `.`); ext != `` {
		if implied, ok := MarkupForExtension(ext); ok {
			isContent = true
			base = strings.TrimSuffix(base, `.`+ext)

			if implied != MarkupMarkdown {
				// markdown converts for either protocol; protocol-specific
				// markups only list for their own
				markup = implied
				anyMarkup = false
			}
		}
	}

	if !isContent {
		return pageEntry{}, false
	}

	file, err := self.context.FsRead(path)

	if err != nil {
		log.Errorf("error scanning page %s: %v", path, err)
		return pageEntry{}, false
	}

	frontMatter, _, err := SplitFrontMatter(file.Data)

	if err != nil {
		log.Warningf("error parsing front matter of %s: %v", path, err)
		return pageEntry{}, false
	}

	if frontMatter == nil {
		frontMatter = map[string]interface{}{}
	}

	if typeutil.Bool(frontMatter[`unlisted`]) {
		return pageEntry{}, false
	}

	rel, err := filepath.Rel(config.PublicRootPath, base)

	if err != nil {
		return pageEntry{}, false
	}

	var urlPath = `/` + filepath.ToSlash(rel)

	var meta = PageMetadata{
		Path:        urlPath,
		Title:       typeutil.String(frontMatter[`title`]),
		Description: typeutil.String(frontMatter[`description`]),
		IsPost:      typeutil.Bool(frontMatter[`post`]),
		Date:        file.ModifiedAt,
	}

	if meta.Title == `` {
		meta.Title = filepath.Base(base)
	}

	// the YAML decoder resolves unquoted ISO timestamps to time.Time already
	if date, ok := frontMatter[`date`].(time.Time); ok {
		meta.Date = date
	} else if date, err := time.Parse(time.RFC3339, typeutil.String(frontMatter[`date`])); err == nil {
		meta.Date = date
	}

	return pageEntry{
		meta:      meta,
		markup:    markup,
		anyMarkup: anyMarkup,
	}, true
}
