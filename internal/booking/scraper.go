package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"

	"terminbot/internal/catalog"
	"terminbot/pkg/logx"
)

// ErrUnsupportedType means the booking form did not answer with an
// availability payload for the requested type: the department no longer
// offers it (or renamed it). Callers must present this differently from
// "no free slots".
var ErrUnsupportedType = errors.New("appointment type not accepted by the booking form")

// Scraper performs the raw availability lookup against the booking backend.
type Scraper interface {
	FetchRawAvailability(ctx context.Context, dep catalog.Department, appointmentType string) ([]LocationAvailability, error)
}

// The form embeds results as a jsonAppoints JavaScript literal.
var appointsRe = regexp.MustCompile(`jsonAppoints = '(.*?)'`)

// HTTPScraper drives the termin/index.php form: one empty POST to obtain a
// session cookie, then the search POST. Each lookup gets a fresh cookie jar
// so concurrent subscriptions never share a server-side session.
type HTTPScraper struct {
	log logx.Logger
}

func NewHTTPScraper(log logx.Logger) *HTTPScraper {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPScraper{log: log}
}

func (s *HTTPScraper) FetchRawAvailability(ctx context.Context, dep catalog.Department, appointmentType string) ([]LocationAvailability, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar}

	// First request only establishes the session cookie.
	if err := s.post(ctx, client, dep.FrameURL, nil, io.Discard); err != nil {
		return nil, fmt.Errorf("session request for %s: %w", dep.ID, err)
	}

	form := url.Values{
		fmt.Sprintf("CASETYPES[%s]", appointmentType): {"1"},
		"step": {"WEB_APPOINT_SEARCH_BY_CASETYPES"},
	}
	var body strings.Builder
	if err := s.post(ctx, client, dep.FrameURL, form, &body); err != nil {
		return nil, fmt.Errorf("search request for %s: %w", dep.ID, err)
	}

	m := appointsRe.FindStringSubmatch(body.String())
	if m == nil {
		// The form rendered without a payload: the type string is not one
		// of its CASETYPES any more.
		s.log.Warn("no availability payload in response",
			logx.String("department", dep.ID),
			logx.String("type", appointmentType))
		return nil, ErrUnsupportedType
	}

	locs, err := decodeAppointments([]byte(m[1]))
	if err != nil {
		return nil, fmt.Errorf("decode availability payload for %s: %w", dep.ID, err)
	}
	return locs, nil
}

func (s *HTTPScraper) post(ctx context.Context, client *http.Client, target string, form url.Values, sink io.Writer) error {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reqBody)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	_, err = io.Copy(sink, io.LimitReader(resp.Body, 8<<20))
	return err
}
