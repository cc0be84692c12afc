package engine

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

const fallbackFilename = "rawst.download"

// AllowsPartialContent reports whether the server advertised byte ranges.
func AllowsPartialContent(h http.Header) bool {
	v := strings.TrimSpace(h.Get("Accept-Ranges"))
	return v != "" && !strings.EqualFold(v, "none")
}

// ContentLength returns the advertised size, or 0 when it is missing or unparsable.
func ContentLength(h http.Header) int64 {
	v := h.Get("Content-Length")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FilenameFromHeader extracts a safe base name from Content-Disposition.
// Names that try to leave the destination directory are ignored.
func FilenameFromHeader(h http.Header) string {
	cd := h.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	fn := params["filename"]
	if fn == "" {
		if ext, ok := params["filename*"]; ok && strings.HasPrefix(strings.ToUpper(ext), "UTF-8''") {
			fn, _ = url.PathUnescape(ext[len("UTF-8''"):])
		}
	}
	return sanitizeFilename(fn)
}

// FilenameFromURL uses the last path segment, then the host, then a fixed fallback.
func FilenameFromURL(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return fallbackFilename
	}
	segment := path.Base(u.Path)
	if segment != "/" && segment != "." {
		if unescaped, err := url.PathUnescape(segment); err == nil {
			segment = unescaped
		}
		if fn := sanitizeFilename(segment); fn != "" {
			return fn
		}
	}
	if host := u.Hostname(); host != "" {
		return sanitizeFilename(host) + ".download"
	}
	return fallbackFilename
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if strings.ContainsAny(name, `/\`) {
		return ""
	}
	name = filenameRegex.ReplaceAllString(name, "_")
	if name == "." || name == ".." || strings.Trim(name, "_") == "" {
		return ""
	}
	return name
}
