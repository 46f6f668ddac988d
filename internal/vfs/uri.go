package vfs

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// SchemeFile is the scheme of local and remote disk resources.
const SchemeFile = "file"

// URI identifies a resource. Its JSON form is the components object, which is
// how resources travel over a channel.
type URI struct {
	Scheme    string `json:"scheme"`
	Authority string `json:"authority,omitempty"`
	Path      string `json:"path"`
	Query     string `json:"query,omitempty"`
	Fragment  string `json:"fragment,omitempty"`
}

// File returns a file URI for an OS path. Relative paths are made absolute.
func File(p string) URI {
	if !filepath.IsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return URI{Scheme: SchemeFile, Path: p}
}

// ParseURI parses s as a URI. A string without a scheme is treated as a file
// path.
func ParseURI(s string) (URI, error) {
	if s == "" {
		return URI{}, fmt.Errorf("empty uri")
	}
	if !strings.Contains(s, "://") && !strings.HasPrefix(s, "file:") {
		return File(s), nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return URI{}, fmt.Errorf("parse uri %q: %w", s, err)
	}
	return ReviveURI(URI{
		Scheme:    u.Scheme,
		Authority: u.Host,
		Path:      u.Path,
		Query:     u.RawQuery,
		Fragment:  u.Fragment,
	})
}

// ReviveURI validates components received from a peer and returns the
// reconstructed URI.
func ReviveURI(c URI) (URI, error) {
	if c.Scheme == "" {
		return URI{}, fmt.Errorf("uri %q: missing scheme", c.Path)
	}
	if c.Authority != "" && c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		return URI{}, fmt.Errorf("uri %q: path must be absolute when authority is set", c.Path)
	}
	if c.Scheme == SchemeFile && c.Path == "" {
		c.Path = "/"
	}
	return c, nil
}

// String renders the URI in its textual form.
func (u URI) String() string {
	v := url.URL{
		Scheme:   u.Scheme,
		Host:     u.Authority,
		Path:     u.Path,
		RawQuery: u.Query,
		Fragment: u.Fragment,
	}
	if u.Scheme == SchemeFile && u.Authority == "" {
		return "file://" + v.EscapedPath()
	}
	return v.String()
}

// FSPath returns the OS path of a file URI.
func (u URI) FSPath() string {
	return filepath.FromSlash(u.Path)
}

// Join returns the URI of a child resource.
func (u URI) Join(elem ...string) URI {
	parts := append([]string{u.Path}, elem...)
	u.Path = path.Join(parts...)
	return u
}

// Base returns the last element of the URI path.
func (u URI) Base() string {
	return path.Base(u.Path)
}

// IsZero reports whether u is the zero URI.
func (u URI) IsZero() bool {
	return u == URI{}
}
