package httpapi

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strings"
)

const baseHrefPlaceholder = "<!-- BASE_HREF -->"

// mount describes where the app is served: the path prefix a reverse proxy
// forwards and the public href the browser resolves relative links against.
type mount struct {
	prefix string
	href   string
}

func newMount(baseURL, basePath string) mount {
	prefix := cleanPrefix(basePath)
	origin := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	m := mount{prefix: prefix}
	if origin != "" || prefix != "" {
		m.href = origin + prefix + "/"
	}
	return m
}

func cleanPrefix(value string) string {
	path := strings.Trim(strings.TrimSpace(value), "/")
	if path == "" {
		return ""
	}
	return "/" + path
}

// home is the app root after sign-in and sign-out.
func (m mount) home() string {
	return m.prefix + "/"
}

// login is where a browser without a usable session starts signing in.
func (m mount) login() string {
	return m.prefix + "/auth/login"
}

// index renders the embedded page with a base tag when mounted.
func (m mount) index(page []byte) []byte {
	tag := ""
	if m.href != "" {
		tag = fmt.Sprintf(`<base href="%s" />`, html.EscapeString(m.href))
	}
	return bytes.ReplaceAll(page, []byte(baseHrefPlaceholder), []byte(tag))
}

// wrap serves handler below the prefix and redirects the bare prefix.
func (m mount) wrap(handler http.Handler) http.Handler {
	if m.prefix == "" {
		return handler
	}
	root := http.NewServeMux()
	root.Handle(m.prefix+"/", http.StripPrefix(m.prefix, handler))
	root.HandleFunc(m.prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != m.prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, m.home(), http.StatusTemporaryRedirect)
	})
	return root
}
