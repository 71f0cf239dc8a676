package obs

import "strings"

// resource collections whose next path segment is an identifier
var idCollections = map[string]bool{
	"/v1/reminders":          true,
	"/v1/applications":       true,
	"/v1/profile/documents":  true,
	"/v1/workflow/documents": true,
}

// CanonicalPath folds identifiers out of a request path so metric labels stay
// bounded. Query strings are dropped.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	for prefix := range idCollections {
		rest, ok := strings.CutPrefix(p, prefix+"/")
		if !ok || rest == "" {
			continue
		}
		if strings.Contains(rest, "/") {
			return p
		}
		return prefix + "/:id"
	}
	return p
}
