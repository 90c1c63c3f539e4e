package pipeline

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/judikatura/crawler/internal/config"
	"github.com/judikatura/crawler/internal/source"
)

// Published endpoints of the Czech court systems. The Supreme
// Administrative Court (NSS) publishes a tabular open-data export; the
// Supreme Court (NS) and the regional courts only expose script-rendered
// portals and RSS feeds.
const (
	nssExportURL = "https://www.nssoud.cz/fileadmin/user_upload/dokumenty/Otevrena_data/Data_2025/Rijen/otevrena_data_NSS.xlsx"
	nssPortalURL = "https://vyhledavac.nssoud.cz"

	nsPortalURL = "https://sbirka.nsoud.cz"
	nsFeedURL   = "https://sbirka.nsoud.cz/feed/"

	// Regional court decisions are served from one central portal, but
	// each court publishes its own feed.
	regionalPortalURL = "https://rozhodnuti.justice.cz"
)

var regionalCourtSites = map[string]string{
	"ksos": "https://www.ksos.justice.cz",
	"ksph": "https://www.ksph.justice.cz",
	"ksbr": "https://www.ksbr.justice.cz",
	"ksul": "https://www.ksul.justice.cz",
	"kshk": "https://www.kshk.justice.cz",
	"kscb": "https://www.kscb.justice.cz",
	"kspl": "https://www.kspl.justice.cz",
}

// Adapters builds the search adapter list for the configured sources.
// Every source is a fallback chain: cheap structured data first, then a
// rendered portal, then a feed. Unknown source codes are logged and
// skipped so one typo does not kill a whole run.
func Adapters(cfg *config.Config, client *http.Client, logger *slog.Logger) []source.Adapter {
	browser := &source.ChromeBrowser{Timeout: cfg.RequestTimeout()}

	var adapters []source.Adapter
	for _, code := range cfg.Sources {
		code = strings.ToLower(strings.TrimSpace(code))
		switch {
		case code == "nss":
			adapters = append(adapters, &source.Chain{
				SourceName: "nss",
				Logger:     logger,
				Strategies: []source.Adapter{
					&source.OpenDataAdapter{
						ExportURL:   nssExportURL,
						CacheDir:    filepath.Join(cfg.DataDir, "cache"),
						MaxCacheAge: cfg.ExportMaxAge(),
						Client:      client,
						Logger:      logger,
					},
					&source.PortalAdapter{
						BaseURL:   nssPortalURL,
						CourtCode: "NSS",
						Browser:   browser,
						Logger:    logger,
					},
				},
			})
		case code == "ns":
			adapters = append(adapters, &source.Chain{
				SourceName: "ns",
				Logger:     logger,
				Strategies: []source.Adapter{
					&source.PortalAdapter{
						BaseURL:   nsPortalURL,
						CourtCode: "NS",
						Browser:   browser,
						Logger:    logger,
					},
					&source.FeedAdapter{
						FeedURL:    nsFeedURL,
						SourceCode: "NS",
						Logger:     logger,
					},
				},
			})
		case regionalCourtSites[code] != "":
			site := regionalCourtSites[code]
			adapters = append(adapters, &source.Chain{
				SourceName: code,
				Logger:     logger,
				Strategies: []source.Adapter{
					&source.PortalAdapter{
						BaseURL:   regionalPortalURL,
						CourtCode: strings.ToUpper(code),
						Browser:   browser,
						Logger:    logger,
					},
					&source.FeedAdapter{
						FeedURL:    site + "/feed/",
						SourceCode: strings.ToUpper(code),
						Logger:     logger,
					},
				},
			})
		default:
			if logger != nil {
				logger.Warn("unknown source in config, skipping", "source", code)
			}
		}
	}
	return adapters
}
