// Package techdetect fingerprints the technologies an audited page is built with
// (CMS, CDN, JavaScript frameworks, analytics) using wappalyzergo.
package techdetect

import (
	"net/http"
	"sort"
	"sync"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"github.com/rs/zerolog/log"
)

// MaxBodySample bounds how much of the page body is fingerprinted (512KB)
const MaxBodySample = 512 * 1024

// Detector provides technology detection capabilities
type Detector struct {
	client *wappalyzer.Wappalyze
}

// categoryNames maps wappalyzer category IDs to human-readable names
var categoryNames map[int]string
var categoryNamesOnce sync.Once

// New creates a new technology detector. Loading the fingerprint database is
// expensive, so one Detector should be shared across audits.
func New() (*Detector, error) {
	client, err := wappalyzer.New()
	if err != nil {
		return nil, err
	}

	categoryNamesOnce.Do(func() {
		categoryNames = make(map[int]string)
		for id, cat := range wappalyzer.GetCategoriesMapping() {
			categoryNames[id] = cat.Name
		}
	})

	return &Detector{client: client}, nil
}

// Detect maps each technology found in the response to its sorted category names,
// e.g. {"WordPress": ["Blogs", "CMS"], "Cloudflare": ["CDN"]}.
func (d *Detector) Detect(headers http.Header, body []byte) map[string][]string {
	if headers == nil {
		headers = http.Header{}
	}
	if len(body) > MaxBodySample {
		body = body[:MaxBodySample]
	}

	technologies := make(map[string][]string)
	for tech, catInfo := range d.client.FingerprintWithCats(headers, body) {
		categories := make([]string, 0, len(catInfo.Cats))
		for _, catID := range catInfo.Cats {
			if name, ok := categoryNames[catID]; ok {
				categories = append(categories, name)
			}
		}
		sort.Strings(categories)
		technologies[tech] = categories
	}

	log.Debug().
		Int("tech_count", len(technologies)).
		Msg("Technology detection completed")

	return technologies
}

// Names returns the technology names in alphabetical order.
func Names(technologies map[string][]string) []string {
	names := make([]string, 0, len(technologies))
	for name := range technologies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
