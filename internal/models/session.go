package models

// SessionCookie is one credential tuple presented to the target site so the
// crawler appears as a logged-in identity. The set is fixed at startup and
// shared read-only across browser sessions.
type SessionCookie struct {
	Name     string `toml:"name"`
	Value    string `toml:"value"`
	Domain   string `toml:"domain"`
	Path     string `toml:"path"`
	Secure   bool   `toml:"secure"`
	HTTPOnly bool   `toml:"http_only"`
	SameSite string `toml:"same_site"` // "strict", "lax", "none" or empty
}
