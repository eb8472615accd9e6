package booking

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"terminbot/internal/catalog"
	"terminbot/pkg/logx"
)

func TestHTTPScraperFetch(t *testing.T) {
	t.Parallel()

	const page = `<html><script>
		var jsonAppoints = '{"p1": {"caption": "Ruppertstr. 19", "appoints": {"2026-09-04": ["10:15"]}}}';
	</script></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("step") == "" {
			// session request
			io.WriteString(w, "<html>form</html>")
			return
		}
		if got := r.PostForm.Get("step"); got != "WEB_APPOINT_SEARCH_BY_CASETYPES" {
			t.Errorf("step = %q", got)
		}
		if got := r.PostForm.Get("CASETYPES[An- oder Ummeldung - Einzelperson]"); got != "1" {
			t.Errorf("casetype flag = %q", got)
		}
		io.WriteString(w, page)
	}))
	defer srv.Close()

	dep := catalog.Department{ID: "bb", Name: "Bürgerbüro", FrameURL: srv.URL}
	s := NewHTTPScraper(logx.Nop())

	locs, err := s.FetchRawAvailability(context.Background(), dep, "An- oder Ummeldung - Einzelperson")
	if err != nil {
		t.Fatalf("FetchRawAvailability error: %v", err)
	}
	if len(locs) != 1 || locs[0].Caption != "Ruppertstr. 19" {
		t.Fatalf("locations = %+v", locs)
	}
	if len(locs[0].Days) != 1 || locs[0].Days[0].Date != "2026-09-04" {
		t.Fatalf("days = %+v", locs[0].Days)
	}
}

func TestHTTPScraperUnsupportedType(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>no payload here</html>")
	}))
	defer srv.Close()

	s := NewHTTPScraper(logx.Nop())
	dep := catalog.Department{ID: "fs", FrameURL: srv.URL}
	_, err := s.FetchRawAvailability(context.Background(), dep, "Retired Type")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestHTTPScraperServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPScraper(logx.Nop())
	dep := catalog.Department{ID: "fs", FrameURL: srv.URL}
	_, err := s.FetchRawAvailability(context.Background(), dep, "anything")
	if err == nil || errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want transport error", err)
	}
}
