package cookies

import (
	"net/http"
	"sort"
)

// Config holds the cookie attributes shared by every cookie a store writes.
// HttpOnly and Path are fixed; SameSite and Secure are configurable, with
// Secure auto-upgraded by the caller when the application base URL is https.
type Config struct {
	SameSite http.SameSite
	Secure   bool
	Path     string
}

// DefaultConfig returns the attribute set used unless overridden: lax
// same-site, not secure, path "/".
func DefaultConfig() Config {
	return Config{
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
		Path:     "/",
	}
}

// setCookieHeaderPrefix is counted when measuring the serialised header
// size, since browser limits apply to the whole header line.
const setCookieHeaderPrefix = "Set-Cookie: "

// Cookie is a name/value pair as seen from the request view of a Jar.
type Cookie struct {
	Name  string
	Value string
}

// Jar is the request-scoped cookie view. Reads come from the incoming request
// cookies; writes go to the response's Set-Cookie headers AND mutate the
// request view in place, so a later read within the same request observes the
// write. That read-after-write behaviour is a deliberate, documented side
// effect the stores rely on.
type Jar struct {
	w       http.ResponseWriter
	request map[string]string
}

// NewJar builds a Jar from the incoming request cookies and the outgoing
// response writer.
func NewJar(w http.ResponseWriter, r *http.Request) *Jar {
	request := make(map[string]string)
	if r != nil {
		for _, c := range r.Cookies() {
			request[c.Name] = c.Value
		}
	}
	return &Jar{w: w, request: request}
}

// Get returns the current value of the named cookie.
func (j *Jar) Get(name string) (string, bool) {
	v, ok := j.request[name]
	return v, ok
}

// GetAll returns every cookie in the jar, sorted by name so that callers
// iterating prefixed cookie families see a deterministic order.
func (j *Jar) GetAll() []Cookie {
	all := make([]Cookie, 0, len(j.request))
	for name, value := range j.request {
		all = append(all, Cookie{Name: name, Value: value})
	}
	sort.Slice(all, func(i, k int) bool { return all[i].Name < all[k].Name })
	return all
}

// Set writes the cookie to the response and updates the request view. It
// returns the byte length of the full serialised Set-Cookie header line,
// header name included, so callers can warn about values browsers may
// truncate.
func (j *Jar) Set(name, value string, cfg Config, maxAge int) int {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cfg.Path,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
		MaxAge:   maxAge,
	}
	http.SetCookie(j.w, c)
	j.request[name] = value
	return len(setCookieHeaderPrefix) + len(c.String())
}

// Delete expires the cookie on the client and removes it from the request
// view. Deleting an absent cookie is a no-op on the request side but still
// emits the expiry header.
func (j *Jar) Delete(name string, cfg Config) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cfg.Path,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
		MaxAge:   -1,
	})
	delete(j.request, name)
}
