package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"golang.org/x/net/html"

	"github.com/chronomap/chronomap-go/internal/commons"
	"github.com/chronomap/chronomap-go/internal/errors"
)

// Sentinel rejection reasons. Candidates failing metadata extraction are
// dropped before any validator call is made.
var (
	ErrNoUsableYear        = errors.NewStd("no usable year in candidate metadata")
	ErrNoUsableCoordinates = errors.NewStd("no usable coordinates in candidate metadata")
)

// UnknownLicense is the license sentinel used when the provider reports
// neither a short license name nor usage terms.
const UnknownLicense = "Unknown License"

// dateFieldPriority lists the extmetadata fields probed for a year, most
// trustworthy first.
var dateFieldPriority = []string{
	"DateTimeOriginal",
	"DateTime",
	"DateTimeDigitized",
}

// yearParser extracts a year from one string shape. Parsers run in order;
// the first match wins.
type yearParser struct {
	name  string
	parse func(string) (int, bool)
}

var (
	isoDateRe      = regexp.MustCompile(`^(\d{4})-\d{2}-\d{2}`)
	exifDateRe     = regexp.MustCompile(`^(\d{4}):\d{2}:\d{2}`)
	bareYearRe     = regexp.MustCompile(`^\s*(\d{4})\s*$`)
	embeddedYearRe = regexp.MustCompile(`\b(\d{4})\b`)

	dmsRe = regexp.MustCompile(`^\s*(\d+)\s*[°º]\s*(\d+)\s*['′]\s*([\d.]+)\s*["″]?\s*([NSEW])\s*$`)
)

var yearParsers = []yearParser{
	{"iso-date", regexYearParser(isoDateRe)},
	{"exif-date", regexYearParser(exifDateRe)},
	{"bare-year", regexYearParser(bareYearRe)},
	{"embedded-year", regexYearParser(embeddedYearRe)},
}

func regexYearParser(re *regexp.Regexp) func(string) (int, bool) {
	return func(s string) (int, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return 0, false
		}
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return year, true
	}
}

// Extractor parses year, coordinates, license and photographer out of raw
// provider metadata.
type Extractor struct {
	minYear int
	nowFunc func() time.Time
}

// NewExtractor creates an Extractor rejecting years before minYear.
func NewExtractor(minYear int) *Extractor {
	return &Extractor{
		minYear: minYear,
		nowFunc: time.Now,
	}
}

// Extract builds a PhotoRecord from one detail payload. The geo argument is
// the candidate's search-time coordinate, used when the metadata carries no
// GPS fields; nil when the search strategy provided none. Format and
// MIMEType are filled in later from the validator verdict.
//
// Extraction is all or nothing: a missing year or unusable coordinates
// reject the candidate, there is no partial record.
func (e *Extractor) Extract(detail commons.PageDetail, geo *LatLon) (*PhotoRecord, error) {
	year, dateCreated, ok := e.extractYear(detail.ExtMetadata)
	if !ok {
		return nil, ErrNoUsableYear
	}

	coords, ok := e.extractCoordinates(detail.ExtMetadata, geo)
	if !ok {
		return nil, ErrNoUsableCoordinates
	}

	record := &PhotoRecord{
		ID:          detail.PageID,
		URL:         detail.URL,
		Title:       strings.TrimPrefix(detail.Title, "File:"),
		Description: extractDescription(detail.ExtMetadata),
		Year:        year,
		Coordinates: coords,
		Source:      "commons",
		Metadata: Metadata{
			Photographer: extractPhotographer(detail.ExtMetadata["Artist"]),
			License:      extractLicense(detail.ExtMetadata),
			DateCreated:  dateCreated,
			MIMEType:     detail.MIME,
		},
	}
	return record, nil
}

// extractYear probes the prioritized date fields with the ordered parser
// table. The first field yielding an in-range year wins.
func (e *Extractor) extractYear(meta map[string]string) (year int, raw string, ok bool) {
	currentYear := e.nowFunc().Year()
	for _, field := range dateFieldPriority {
		value, present := meta[field]
		if !present || value == "" {
			continue
		}
		// Date fields on Commons frequently arrive wrapped in markup.
		value = strings.TrimSpace(html2text.HTML2Text(value))
		for _, parser := range yearParsers {
			y, matched := parser.parse(value)
			if !matched {
				continue
			}
			if y >= e.minYear && y <= currentYear {
				return y, value, true
			}
		}
	}
	return 0, "", false
}

// extractCoordinates resolves a usable coordinate pair from GPS metadata,
// falling back to the search-time coordinate. Exact (0,0) is treated as
// missing data, never as a real position.
func (e *Extractor) extractCoordinates(meta map[string]string, geo *LatLon) (LatLon, bool) {
	latStr, latOK := meta["GPSLatitude"]
	lonStr, lonOK := meta["GPSLongitude"]
	if latOK && lonOK {
		lat, latParsed := parseCoordinate(latStr)
		lon, lonParsed := parseCoordinate(lonStr)
		if latParsed && lonParsed && coordinatesUsable(lat, lon) {
			return LatLon{Lat: lat, Lon: lon}, true
		}
	}

	if geo != nil && coordinatesUsable(geo.Lat, geo.Lon) {
		return *geo, true
	}
	return LatLon{}, false
}

// parseCoordinate accepts a signed decimal degree string or a
// degree/minute/second string with trailing hemisphere letter.
func parseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}

	m := dmsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	deg, _ := strconv.ParseFloat(m[1], 64)
	min, _ := strconv.ParseFloat(m[2], 64)
	sec, _ := strconv.ParseFloat(m[3], 64)
	value := deg + min/60 + sec/3600
	if m[4] == "S" || m[4] == "W" {
		value = -value
	}
	return value, true
}

func coordinatesUsable(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// extractLicense prefers the short license name, falls back to usage terms,
// and never returns empty.
func extractLicense(meta map[string]string) string {
	if name := strings.TrimSpace(meta["LicenseShortName"]); name != "" {
		return name
	}
	if terms := strings.TrimSpace(html2text.HTML2Text(meta["UsageTerms"])); terms != "" {
		return terms
	}
	return UnknownLicense
}

// extractDescription flattens the provider's HTML description to plain text.
func extractDescription(meta map[string]string) string {
	return strings.TrimSpace(html2text.HTML2Text(meta["ImageDescription"]))
}

// extractPhotographer pulls the author name out of the attribution HTML.
// Attribution on Commons is usually an anchor wrapping the name; user-page
// links are the most reliable.
func extractPhotographer(artistHTML string) string {
	artistHTML = strings.TrimSpace(artistHTML)
	if artistHTML == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(artistHTML))
	if err != nil {
		return strings.TrimSpace(html2text.HTML2Text(artistHTML))
	}

	links := findLinks(doc)
	for _, link := range links {
		if isUserPageLink(extractHref(link)) {
			if text := extractLinkText(link); text != "" {
				return text
			}
		}
	}
	if len(links) > 0 {
		if text := extractLinkText(links[0]); text != "" {
			return text
		}
	}
	return strings.TrimSpace(html2text.HTML2Text(artistHTML))
}

func isUserPageLink(href string) bool {
	return strings.Contains(href, "/wiki/User:")
}

// findLinks traverses the HTML document and returns all anchor tags.
func findLinks(doc *html.Node) []*html.Node {
	var linkNodes []*html.Node

	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			linkNodes = append(linkNodes, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			traverse(child)
		}
	}

	traverse(doc)

	return linkNodes
}

func extractHref(link *html.Node) string {
	for _, attr := range link.Attr {
		if attr.Key == "href" {
			return attr.Val
		}
	}
	return ""
}

func extractLinkText(link *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(link)
	return strings.TrimSpace(b.String())
}
