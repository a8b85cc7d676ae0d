package scraper

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/meterwatch/internal/civil"
)

// DefaultBaseURL is the prepaid meter payment page; the device id goes
// in the mid query parameter.
const DefaultBaseURL = "http://www.wap.cnyiot.com/nat/pay.aspx"

const userAgent = "Mozilla/5.0"

// Page parsing: the balance page renders the meter number in a label
// with id "metid" and the remaining credit after a 剩余电量 label. Both
// have plain-text fallbacks because the markup shifts between firmware
// versions.
var (
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	meterIDRe     = regexp.MustCompile(`(?is)id=["']metid["'][^>]*>([^<]+)`)
	meterIDTextRe = regexp.MustCompile(`(?:电表号|表号)\s*(?:[:：]|&#58;|&colon;)?\s*([0-9A-Za-z\-]+)`)
	powerLabelRe  = regexp.MustCompile(`(?is)剩余电量(?:[:：]|&#58;|&colon;)?</span>\s*<label[^>]*>([^<]+)</label>`)
	powerTextRe   = regexp.MustCompile(`剩余电量(?:[:：]|&#58;|&colon;)?[^0-9]*([0-9]+(?:\.[0-9]+)?)`)
	firstNumberRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)`)
)

// ParseError means the page was fetched but the meter fields could not
// be extracted from it
type ParseError struct {
	DeviceID string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse meter page for device %s", e.DeviceID)
}

// MeterReading is one successfully scraped balance observation
type MeterReading struct {
	MeterNo     string
	Remain      float64
	CollectedAt time.Time
}

// MeterScraper fetches and parses the prepaid meter balance page
type MeterScraper struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// NewMeterScraper creates a scraper against the default meter endpoint.
// An empty baseURL keeps the default; tests point it at a local server.
func NewMeterScraper(baseURL string) *MeterScraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &MeterScraper{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		now:     civil.Now,
	}
}

// Fetch retrieves the current balance for a device
func (s *MeterScraper) Fetch(ctx context.Context, deviceID string) (*MeterReading, error) {
	url := fmt.Sprintf("%s?mid=%s", s.baseURL, deviceID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching meter page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching meter page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading meter page: %w", err)
	}

	meterID, remain := ParseMeterPage(string(body))
	if meterID == "" || remain == nil {
		return nil, &ParseError{DeviceID: deviceID}
	}

	return &MeterReading{
		MeterNo:     meterID,
		Remain:      *remain,
		CollectedAt: s.now(),
	}, nil
}

// ParseMeterPage extracts the meter number and remaining balance from
// the page HTML. Either value may be missing; the caller decides
// whether a partial parse is fatal.
func ParseMeterPage(pageHTML string) (string, *float64) {
	normalized := html.UnescapeString(pageHTML)
	var plainText string

	// Precise label match first
	var meterID string
	if m := meterIDRe.FindStringSubmatch(normalized); m != nil {
		meterID = strings.TrimSpace(m[1])
	}
	if meterID == "" {
		plainText = stripTags(normalized)
		if m := meterIDTextRe.FindStringSubmatch(plainText); m != nil {
			meterID = strings.TrimSpace(m[1])
		}
	}

	var rawPower string
	if m := powerLabelRe.FindStringSubmatch(normalized); m != nil {
		rawPower = strings.TrimSpace(m[1])
	}
	if rawPower == "" {
		if plainText == "" {
			plainText = stripTags(normalized)
		}
		if m := powerTextRe.FindStringSubmatch(plainText); m != nil {
			rawPower = m[1]
		}
	}

	return meterID, extractFirstNumber(rawPower)
}

func stripTags(pageHTML string) string {
	return tagRe.ReplaceAllString(pageHTML, " ")
}

func extractFirstNumber(text string) *float64 {
	if text == "" {
		return nil
	}
	m := firstNumberRe.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
