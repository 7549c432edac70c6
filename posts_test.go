package rubyshd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostsListing(t *testing.T) {
	assert := require.New(t)
	context, config := newTestContext(t)

	writeTestFile(t, filepath.Join(config.PublicRootPath, `blog`, `older.md`),
		"---\ntitle: Older Post\ndate: \"2026-01-10T00:00:00Z\"\npost: true\n---\nbody\n")
	writeTestFile(t, filepath.Join(config.PublicRootPath, `blog`, `newer.md`),
		"---\ntitle: Newer Post\ndate: \"2026-03-05T00:00:00Z\"\npost: true\ndescription: fresh\n---\nbody\n")
	writeTestFile(t, filepath.Join(config.PublicRootPath, `blog`, `secret.md`),
		"---\ntitle: Hidden\npost: true\nunlisted: true\n---\nbody\n")
	writeTestFile(t, filepath.Join(config.PublicRootPath, `about.hbs`),
		"---\ntitle: About\n---\nnot a post\n")

	var posts = context.Posts(ProtocolGemini)
	assert.Len(posts, 2)

	// newest first
	assert.Equal(`Newer Post`, posts[0].Title)
	assert.Equal(`/blog/newer`, posts[0].Path)
	assert.Equal(`fresh`, posts[0].Description)
	assert.Equal(ProtocolGemini, posts[0].Protocol)
	assert.Equal(`Older Post`, posts[1].Title)
	assert.Equal(`/blog/older`, posts[1].Path)

	expected, err := time.Parse(time.RFC3339, `2026-03-05T00:00:00Z`)
	assert.NoError(err)
	assert.True(posts[0].Date.Equal(expected))
}

func TestPostsProtocolFiltering(t *testing.T) {
	assert := require.New(t)
	context, config := newTestContext(t)

	// markdown posts convert for either protocol, markup-specific ones do not
	writeTestFile(t, filepath.Join(config.PublicRootPath, `both.md`),
		"---\ntitle: Both\npost: true\n---\nbody\n")
	writeTestFile(t, filepath.Join(config.PublicRootPath, `gemonly.gmi.hbs`),
		"---\ntitle: Gemini Only\npost: true\n---\nbody\n")
	writeTestFile(t, filepath.Join(config.PublicRootPath, `webonly.html.hbs`),
		"---\ntitle: Web Only\npost: true\n---\nbody\n")

	var titles = func(posts []PageMetadata) []string {
		var out []string

		for _, post := range posts {
			out = append(out, post.Title)
		}

		return out
	}

	assert.ElementsMatch([]string{`Both`, `Gemini Only`}, titles(context.Posts(ProtocolGemini)))
	assert.ElementsMatch([]string{`Both`, `Web Only`}, titles(context.Posts(ProtocolHttps)))
}

func TestPostsFallbackMetadata(t *testing.T) {
	assert := require.New(t)
	context, config := newTestContext(t)

	// no title falls back to the filename, no date to the file mtime
	writeTestFile(t, filepath.Join(config.PublicRootPath, `untitled.md`),
		"---\npost: true\n---\nbody\n")

	var posts = context.Posts(ProtocolGemini)
	assert.Len(posts, 1)
	assert.Equal(`untitled`, posts[0].Title)
	assert.WithinDuration(time.Now(), posts[0].Date, time.Minute)
}

func TestPostsVisibleInTemplates(t *testing.T) {
	assert := require.New(t)
	context, config := newTestContext(t)

	writeTestFile(t, filepath.Join(config.PublicRootPath, `blog`, `hello.md`),
		"---\ntitle: Hello\npost: true\n---\nbody\n")
	writeTestFile(t, filepath.Join(config.PublicRootPath, `index.gmi.hbs`),
		"{{#each posts}}=> {{this.path}} {{this.title}}\n{{/each}}")

	var response = ResolveRequest(newTestRequest(t, context, `gemini://localhost/`))
	assert.Equal(StatusSuccess, response.Status)
	assert.Equal("=> /blog/hello Hello\n", string(response.Body))
}
