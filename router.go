package rubyshd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ghetzel/go-stockutil/fileutil"
	"github.com/ghetzel/go-stockutil/log"
)

const markdownSuffix = `.md`

// ResolveRequest resolves a decoded request to its response.  Every failure
// is mapped onto a Status and answered with that status's error document, so
// this never returns an error.
func ResolveRequest(request *Request) *Response {
	var response, err = resolveToFile(request)

	if err == nil {
		log.Infof("%s OK", request.logContext())
		return response
	}

	var status = StatusForError(err)

	if IsNotFound(err) {
		log.Errorf("%s Not Found", request.logContext())
	} else {
		log.Errorf("%s %v: %v", request.logContext(), status, err)
	}

	return errorDocumentResponse(request, status)
}

// resolveToFile walks the fallback chain for the requested path: markup
// extensions imply the output markup, directories resolve through their index
// documents, and bare paths negotiate protocol extensions before falling back
// to a markdown sibling.
func resolveToFile(request *Request) (*Response, error) {
	var config = request.ServerContext().Config()

	// no rooted Clean here: escaping ".." segments must survive into the
	// candidate so canonicalization can expose them
	var candidate = filepath.Join(config.PublicRootPath, filepath.FromSlash(request.Path()))

	var basePath = candidate

	if ext := strings.TrimPrefix(pathExtension(candidate), `.`); ext != `` {
		if markup, ok := MarkupForExtension(ext); ok {
			request.TemplateContext.Markup = markup
			basePath = strings.TrimSuffix(candidate, `.`+ext)
		}
	}

	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		var attempts = []string{
			filepath.Join(candidate, `index`+TemplateSuffix),
		}

		for _, ext := range request.Protocol().FileExtensions() {
			attempts = append(attempts, filepath.Join(candidate, `index.`+ext))
		}

		return firstLoadable(request, attempts)
	}

	var attempts []string

	// an exact markdown path is only tried as the markdown sibling below, so
	// that it goes through conversion rather than being served raw
	if !strings.HasSuffix(candidate, markdownSuffix) {
		attempts = append(attempts, candidate)
	}

	for _, ext := range request.Protocol().FileExtensions() {
		attempts = append(attempts, candidate+`.`+ext)
	}

	attempts = append(attempts, basePath+markdownSuffix)

	return firstLoadable(request, attempts)
}

// firstLoadable tries each path in order, treating only file-absent as "keep
// going": any other failure aborts the chain.
func firstLoadable(request *Request, attempts []string) (*Response, error) {
	for _, attempt := range attempts {
		var response, err = tryLoadFileForPath(request, attempt)

		if err == nil {
			return response, nil
		} else if !IsNotFound(err) {
			return nil, err
		}
	}

	return nil, ErrNotFound
}

// tryLoadFileForPath loads one resolution attempt.  Markdown sources convert
// to the request markup and then render; a path without a template suffix
// falls back to the same path with the suffix appended, which renders.
func tryLoadFileForPath(request *Request, path string) (*Response, error) {
	var tryPath = path

	if !strings.HasSuffix(tryPath, TemplateSuffix) {
		var response, err = tryLoadFile(request, tryPath)

		if err == nil {
			if strings.HasSuffix(tryPath, markdownSuffix) {
				return renderMarkdownResponse(request, tryPath, response)
			}

			return response, nil
		} else if !IsNotFound(err) {
			return nil, err
		}

		tryPath += TemplateSuffix
	}

	var response, err = tryLoadFile(request, tryPath)

	if err != nil {
		return nil, err
	}

	return renderTemplateResponse(request, tryPath, response)
}

// tryLoadFile canonicalizes the path, verifies it stays inside a served root,
// and reads it through the file cache.  The traversal check happens before
// any read of the target.
func tryLoadFile(request *Request, path string) (*Response, error) {
	var config = request.ServerContext().Config()
	var resolved, err = filepath.EvalSymlinks(path)

	if err != nil {
		// any canonicalization failure (absent component, or a file used as
		// a directory) means the resource does not exist
		return nil, ErrNotFound
	}

	if !isWithinRoot(resolved, config.PublicRootPath) && !isWithinRoot(resolved, config.ErrdocsPath) {
		log.Errorf("%s canonicalized path escapes the served roots, path traversal attempt? (canonicalized: %s)",
			request.logContext(), resolved)

		return nil, ErrorForStatus(StatusOtherClientError, `path not inside a served root`)
	}

	if info, err := os.Stat(resolved); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, ErrorForStatus(StatusUnauthorized, err.Error())
	} else if info.IsDir() {
		return nil, ErrNotFound
	}

	file, err := request.ServerContext().FsRead(resolved)

	if err != nil {
		return nil, ErrorForStatus(StatusUnauthorized, err.Error())
	}

	var meta = request.TemplateContext.Meta

	if _, ok := meta[`created_at`]; !ok {
		meta[`created_at`] = file.CreatedAt.UTC().Format(time.RFC3339)
	}

	if _, ok := meta[`updated_at`]; !ok {
		meta[`updated_at`] = file.ModifiedAt.UTC().Format(time.RFC3339)
	}

	var mediaType = fileutil.GetMimeType(resolved, request.Protocol().MediaType())

	return NewResponse(StatusSuccess, mediaType, file.Data, true), nil
}

func isWithinRoot(path string, root string) bool {
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// renderMarkdownResponse converts a loaded markdown source into the request
// markup, then renders the conversion output as a template under the markup's
// media type.
func renderMarkdownResponse(request *Request, loadedPath string, response *Response) (*Response, error) {
	var content, err = splitResponseFrontMatter(request, loadedPath, response)

	if err != nil {
		return nil, err
	}

	var converted = ConvertMarkdown(request.TemplateContext.Markup, string(content))

	return renderResponseBody(request, loadedPath, converted)
}

func renderTemplateResponse(request *Request, loadedPath string, response *Response) (*Response, error) {
	var content, err = splitResponseFrontMatter(request, loadedPath, response)

	if err != nil {
		return nil, err
	}

	return renderResponseBody(request, loadedPath, string(content))
}

// splitResponseFrontMatter strips a loaded source's front matter and merges
// it into the request meta, overwriting earlier values on conflict.
func splitResponseFrontMatter(request *Request, loadedPath string, response *Response) ([]byte, error) {
	if !utf8.Valid(response.Body) {
		return nil, ErrorForStatus(StatusOtherServerError,
			fmt.Sprintf("%s: not a valid UTF-8 sequence", loadedPath))
	}

	var frontMatter, content, err = SplitFrontMatter(response.Body)

	if err != nil {
		return nil, ErrorForStatus(StatusOtherServerError,
			fmt.Sprintf("%s: error parsing front matter: %v", loadedPath, err))
	}

	if frontMatter != nil {
		MergeMeta(request.TemplateContext.Meta, frontMatter)
	}

	return content, nil
}

// renderResponseBody renders a source and applies the control values the
// template set: an explicit status token wins, a redirect directive implies
// its redirect status, and a redirect URI turns the whole response into a
// redirect.  Rendered output is never wire-cacheable.
func renderResponseBody(request *Request, loadedPath string, source string) (*Response, error) {
	var rendered, control, err = request.ServerContext().Templates().Render(request.TemplateContext, source)

	if err != nil {
		log.Errorf("%s error rendering %s: %v", request.logContext(), loadedPath, err)
		return nil, ErrorForStatus(StatusOtherServerError, err.Error())
	}

	if control.RedirectURI != `` {
		var status = StatusTemporaryRedirect

		if control.RedirectPermanent != nil && *control.RedirectPermanent {
			status = StatusPermanentRedirect
		}

		return NewRedirectResponse(status, control.RedirectURI), nil
	}

	var status = StatusSuccess

	if control.Status != `` {
		if parsed, err := ParseStatus(control.Status); err == nil {
			status = parsed
		} else {
			log.Warningf("%s template %s set unknown status token %q, keeping %v",
				request.logContext(), loadedPath, control.Status, status)
		}
	} else if control.RedirectPermanent != nil {
		if *control.RedirectPermanent {
			status = StatusPermanentRedirect
		} else {
			status = StatusTemporaryRedirect
		}
	}

	var mediaType = control.MediaType

	if mediaType == `` {
		mediaType = request.TemplateContext.Markup.MediaType()
	}

	return NewResponse(status, mediaType, []byte(rendered), false), nil
}

// errorDocumentResponse answers a failed resolution with the custom error
// document for its status when one exists, or the fixed plain-text fallback.
// Failures here never recurse back into error handling.
func errorDocumentResponse(request *Request, status Status) *Response {
	var config = request.ServerContext().Config()

	for _, ext := range request.Protocol().FileExtensions() {
		var path = filepath.Join(config.ErrdocsPath, status.Token()+`.`+ext)
		var response, err = tryLoadFileForPath(request, path)

		if err == nil {
			response.Status = status
			response.Cacheable = false
			return response
		} else if !IsNotFound(err) {
			log.Errorf("%s error loading error document for %v: %v", request.logContext(), status, err)
		}
	}

	return NewResponseForStatus(status)
}
