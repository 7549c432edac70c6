package rubyshd

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ghetzel/go-stockutil/log"
	"github.com/jellydator/ttlcache/v3"
)

// ServerContext aggregates the Config, the two caches, the partials registry
// and the posts index.  One instance is shared across every connection for
// the process lifetime; the caches are its only mutable state, each guarded
// internally and never locked across I/O.
type ServerContext struct {
	config    *Config
	templates *TemplateSet
	fileCache *ttlcache.Cache[string, *CachedFile]
	dataCache *ttlcache.Cache[string, interface{}]
	posts     *postIndex
}

func NewServerContext(config *Config) *ServerContext {
	var context = &ServerContext{
		config:    config,
		templates: NewTemplateSet(config),
		fileCache: ttlcache.New[string, *CachedFile](
			ttlcache.WithCapacity[string, *CachedFile](maxFileCacheEntries),
			ttlcache.WithDisableTouchOnHit[string, *CachedFile](),
		),
		dataCache: ttlcache.New[string, interface{}](
			ttlcache.WithCapacity[string, interface{}](maxDataCacheEntries),
			ttlcache.WithDisableTouchOnHit[string, interface{}](),
		),
	}

	context.posts = newPostIndex(context)

	return context
}

func (self *ServerContext) Config() *Config {
	return self.config
}

func (self *ServerContext) Templates() *TemplateSet {
	return self.templates
}

// FsRead returns the contents and metadata of the file at path, served from
// the file cache when a live entry exists.  Two concurrent misses may both
// read the filesystem; the last insert wins.
func (self *ServerContext) FsRead(path string) (*CachedFile, error) {
	if item := self.fileCache.Get(path); item != nil {
		log.Debugf("fs cache hit: %s", path)
		return item.Value(), nil
	}

	var data, err = os.ReadFile(path)

	if err != nil {
		return nil, err
	}

	var file = &CachedFile{
		Data: data,
	}

	if info, err := os.Stat(path); err == nil {
		// Birth time is not portable; the modification time stands in for
		// both template-visible timestamps.
		file.CreatedAt = info.ModTime()
		file.ModifiedAt = info.ModTime()
	}

	var ttl = fileCacheTTLForPath(path)

	log.Debugf("fs cache miss (ttl=%v): %s", ttl, path)
	self.fileCache.Set(path, file, ttl)

	return file, nil
}

// GlobalData walks the data root and returns every JSON document keyed by its
// relative path sans extension, e.g. data/site/nav.json -> "site/nav".
func (self *ServerContext) GlobalData() map[string]interface{} {
	var data = make(map[string]interface{})

	var err = filepath.WalkDir(self.config.DataPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() || !strings.HasSuffix(path, `.json`) {
			return err
		}

		rel, err := filepath.Rel(self.config.DataPath, path)

		if err != nil {
			return err
		}

		var key = strings.TrimSuffix(filepath.ToSlash(rel), `.json`)

		if value, err := self.dataRead(path); err == nil {
			data[key] = value
		} else {
			log.Errorf("error reading data JSON file %s: %v", key, err)
		}

		return nil
	})

	if err != nil {
		log.Errorf("error walking data files: %v", err)
	}

	return data
}

func (self *ServerContext) dataRead(path string) (interface{}, error) {
	if item := self.dataCache.Get(path); item != nil {
		log.Debugf("data cache hit: %s", path)
		return item.Value(), nil
	}

	var data, err = os.ReadFile(path)

	if err != nil {
		return nil, err
	}

	if !utf8.Valid(data) {
		return nil, ErrorForStatus(StatusOtherServerError, path+`: not valid UTF-8`)
	}

	var value interface{}

	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}

	log.Debugf("data cache miss: %s", path)
	self.dataCache.Set(path, value, dataCacheTTL)

	return value, nil
}

// Posts returns the sorted page-metadata listing for the given protocol.
func (self *ServerContext) Posts(protocol Protocol) []PageMetadata {
	return self.posts.forProtocol(protocol)
}
