// ABOUTME: Encoding of backend-qualified resource URIs and prompt names.
// ABOUTME: Resources use "backend:uri"; prompts use "backend_name", decoded by longest known backend.

package router

import "strings"

const (
	resourceSeparator = ":"
	promptSeparator   = "_"
)

// EncodeResourceURI qualifies a backend resource URI with its backend name.
func EncodeResourceURI(backend, uri string) string {
	return backend + resourceSeparator + uri
}

// DecodeResourceURI splits a qualified URI at the first separator. Backend
// names cannot contain the separator, so the split is unambiguous.
func DecodeResourceURI(uri string) (backend, original string, ok bool) {
	return strings.Cut(uri, resourceSeparator)
}

// EncodePromptName qualifies a backend prompt name with its backend name.
func EncodePromptName(backend, name string) string {
	return backend + promptSeparator + name
}

// DecodePromptName finds the longest known backend name that prefixes name
// followed by the separator, so backends whose names contain "_" still
// route. With no known prefix it falls back to splitting at the first
// separator; ok is false only when there is no separator at all.
func DecodePromptName(name string, backends []string) (backend, original string, ok bool) {
	best := ""
	for _, b := range backends {
		if len(b) > len(best) && strings.HasPrefix(name, b+promptSeparator) {
			best = b
		}
	}
	if best != "" {
		return best, name[len(best)+len(promptSeparator):], true
	}
	return strings.Cut(name, promptSeparator)
}
