// -----------------------------------------------------------------------
// Session Store - fixed cookie-jar credentials for the scraping identity
// -----------------------------------------------------------------------

package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/models"
)

// cookieJarFile is the on-disk shape of a credential file. File-level domain
// and path act as defaults for entries that omit them.
type cookieJarFile struct {
	Domain  string                 `toml:"domain"`
	Path    string                 `toml:"path"`
	Cookies []models.SessionCookie `toml:"cookies"`
}

// LoadCookieJar reads every *.toml file in dir and returns the combined
// cookie set. The jar is immutable after this point; there is no runtime
// refresh. A missing directory yields an empty jar, not an error.
func LoadCookieJar(dir string, logger arbor.ILogger) ([]models.SessionCookie, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug().Str("path", dir).Msg("Cookie directory not found, starting with empty jar")
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie directory: %w", err)
	}

	var jar []models.SessionCookie
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read cookie file, skipping")
			continue
		}

		var file cookieJarFile
		if err := toml.Unmarshal(data, &file); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse cookie file, skipping")
			continue
		}

		loaded := 0
		for _, c := range file.Cookies {
			if c.Name == "" {
				logger.Warn().Str("file", entry.Name()).Msg("Cookie entry missing name, skipping")
				continue
			}
			if c.Domain == "" {
				c.Domain = file.Domain
			}
			if c.Path == "" {
				c.Path = file.Path
			}
			if c.Path == "" {
				c.Path = "/"
			}
			jar = append(jar, c)
			loaded++
		}

		logger.Info().
			Str("file", entry.Name()).
			Str("domain", file.Domain).
			Int("cookies", loaded).
			Msg("Loaded session cookies from file")
	}

	if len(jar) == 0 {
		logger.Warn().Str("path", dir).Msg("No session cookies loaded - requests will be unauthenticated")
	}

	return jar, nil
}
