package rubyshd

import (
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aymerick/raymond"
	"github.com/ghetzel/go-stockutil/log"
)

const TemplateSuffix = `.hbs`
const BlankPartialName = `blank`
const partialsTTL = 10 * time.Second

// ResponseControl is the out-of-band value a render carries back alongside
// its output.  Template directives set its fields through helpers; each
// field keeps the last value written.
type ResponseControl struct {
	Status            string
	MediaType         string
	RedirectURI       string
	RedirectPermanent *bool
}

// TemplateSet renders handlebars sources against a registry of partials
// loaded from the partials root.  The registry refreshes lazily, at most once
// per TTL window, and only re-reads sources when the on-disk fingerprint
// (path+mtime+size over the whole tree) actually changed.
type TemplateSet struct {
	config      *Config
	lock        sync.Mutex
	partials    map[string]string
	fingerprint string
	refreshedAt time.Time
}

func NewTemplateSet(config *Config) *TemplateSet {
	return &TemplateSet{
		config:   config,
		partials: make(map[string]string),
	}
}

// Partials returns a snapshot of the partials registry, refreshing it first
// if the TTL has elapsed.
func (self *TemplateSet) Partials() map[string]string {
	self.lock.Lock()
	defer self.lock.Unlock()

	if time.Since(self.refreshedAt) >= partialsTTL {
		self.refresh()
	}

	var snapshot = make(map[string]string, len(self.partials))

	for name, source := range self.partials {
		snapshot[name] = source
	}

	return snapshot
}

func (self *TemplateSet) refresh() {
	var fingerprint strings.Builder
	var sources []string

	var err = filepath.WalkDir(self.config.PartialsPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() || !strings.HasSuffix(path, TemplateSuffix) {
			return err
		}

		if info, err := entry.Info(); err == nil {
			fmt.Fprintf(&fingerprint, "%s:%d:%d;", path, info.ModTime().UnixNano(), info.Size())
		}

		sources = append(sources, path)
		return nil
	})

	if err != nil {
		log.Errorf("error walking partials: %v", err)
		return
	}

	self.refreshedAt = time.Now()

	if fingerprint.String() == self.fingerprint {
		return
	}

	var partials = make(map[string]string, len(sources))

	for _, path := range sources {
		var rel, err = filepath.Rel(self.config.PartialsPath, path)

		if err != nil {
			continue
		}

		var name = strings.TrimSuffix(filepath.ToSlash(rel), TemplateSuffix)

		if data, err := os.ReadFile(path); err == nil {
			partials[name] = string(data)
		} else {
			log.Errorf("error loading partial %s: %v", name, err)
		}
	}

	self.partials = partials
	self.fingerprint = fingerprint.String()
	log.Debugf("partials registry refreshed: %d partials", len(partials))
}

// Render executes a handlebars source against the given template context and
// returns the rendered body together with the control values the template
// set during rendering.  Markup-specific partials render through the same
// helper set, so their directives land on the same control value.
func (self *TemplateSet) Render(context *TemplateContext, source string) (string, *ResponseControl, error) {
	var control = new(ResponseControl)
	var partials = self.Partials()
	var data = context.templateData()

	var exec func(source string) (string, error)

	exec = func(source string) (string, error) {
		var template, err = raymond.Parse(source)

		if err != nil {
			return ``, err
		}

		registerControlHelpers(template, control)
		registerContextHelpers(template, context, partials, data, exec)

		template.RegisterPartial(BlankPartialName, ``)

		for name, partialSource := range partials {
			template.RegisterPartial(name, partialSource)
		}

		return template.Exec(data)
	}

	rendered, err := exec(source)

	if err != nil {
		return ``, nil, err
	}

	return rendered, control, nil
}

// Directives may fire any number of times during a render; each simply
// overwrites its field, so the last write wins.
func registerControlHelpers(template *raymond.Template, control *ResponseControl) {
	template.RegisterHelper(`status`, func(token string) string {
		control.Status = token
		return ``
	})

	template.RegisterHelper(`media-type`, func(mediaType string) string {
		control.MediaType = mediaType
		return ``
	})

	template.RegisterHelper(`temporary-redirect`, func(uri string) string {
		var permanent = false
		control.RedirectURI = uri
		control.RedirectPermanent = &permanent
		return ``
	})

	template.RegisterHelper(`permanent-redirect`, func(uri string) string {
		var permanent = true
		control.RedirectURI = uri
		control.RedirectPermanent = &permanent
		return ``
	})
}

func registerContextHelpers(
	template *raymond.Template,
	context *TemplateContext,
	partials map[string]string,
	data map[string]interface{},
	exec func(source string) (string, error),
) {
	// partial-for-markup renders the markup-specific variant of a named
	// partial ("nav" -> "nav.gmi" or "nav.html"), or nothing when the markup
	// has no variant.
	template.RegisterHelper(`partial-for-markup`, func(name string) raymond.SafeString {
		var variant string

		switch context.Markup {
		case MarkupGemtext:
			variant = name + `.gmi`
		case MarkupHTML:
			variant = name + `.html`
		default:
			return ``
		}

		source, ok := partials[variant]

		if !ok {
			log.Warningf("partial-for-markup: no partial named %s", variant)
			return ``
		}

		if rendered, err := exec(source); err == nil {
			return raymond.SafeString(rendered)
		} else {
			log.Errorf("partial-for-markup: error rendering %s: %v", variant, err)
			return ``
		}
	})

	template.RegisterHelper(`pick-random`, func(value interface{}) string {
		switch typed := value.(type) {
		case []interface{}:
			if len(typed) == 0 {
				return ``
			}

			return fmt.Sprintf("%v", typed[rand.Intn(len(typed))])
		case map[string]interface{}:
			if len(typed) == 0 {
				return ``
			}

			var values = make([]interface{}, 0, len(typed))

			for _, v := range typed {
				values = append(values, v)
			}

			return fmt.Sprintf("%v", values[rand.Intn(len(values))])
		default:
			return ``
		}
	})

	template.RegisterHelper(`datetime`, func(value string, layout string) string {
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			return parsed.Format(layout)
		}

		return value
	})
}
