package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"

	"terminbot/pkg/logx"
)

// The booking form declares one CASETYPES[...] input per offered type.
// A "+" inside the brackets only occurs in a service variable, not in a
// real type name, so names containing it are skipped.
var caseTypeRe = regexp.MustCompile(`CASETYPES\[([^+\]]*?)\]`)

const defaultTypeCacheTTL = 24 * time.Hour

type typesEntry struct {
	types     []string
	fetchedAt time.Time
}

// Service resolves departments and their currently offered appointment
// types. Discovery results are cached per department for about one day;
// the forms change rarely and every fetch is a full page download.
type Service struct {
	reg  *Registry
	http *http.Client
	log  logx.Logger
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]typesEntry
}

func New(reg *Registry, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		reg:   reg,
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   log,
		ttl:   defaultTypeCacheTTL,
		now:   time.Now,
		cache: map[string]typesEntry{},
	}
}

func (s *Service) Departments() []Department       { return s.reg.Departments() }
func (s *Service) ByID(id string) (Department, bool) { return s.reg.ByID(id) }

// TypicalTypes returns the pinned types for the department's menu.
func (s *Service) TypicalTypes(dep Department) []string {
	return append([]string(nil), dep.TypicalTypes...)
}

// AvailableTypes returns the appointment types the department's form
// currently accepts, in form order.
func (s *Service) AvailableTypes(ctx context.Context, dep Department) ([]string, error) {
	s.mu.Lock()
	if e, ok := s.cache[dep.ID]; ok && s.now().Sub(e.fetchedAt) < s.ttl {
		types := append([]string(nil), e.types...)
		s.mu.Unlock()
		return types, nil
	}
	s.mu.Unlock()

	types, err := s.fetchTypes(ctx, dep)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[dep.ID] = typesEntry{types: types, fetchedAt: s.now()}
	s.mu.Unlock()

	s.log.Debug("appointment types refreshed", logx.String("department", dep.ID), logx.Int("count", len(types)))
	return append([]string(nil), types...), nil
}

func (s *Service) fetchTypes(ctx context.Context, dep Department) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dep.FrameURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch appointment types for %s: %w", dep.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch appointment types for %s: unexpected status %d", dep.ID, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("fetch appointment types for %s: %w", dep.ID, err)
	}
	return parseCaseTypes(body), nil
}

// parseCaseTypes extracts distinct type names in first-seen order.
func parseCaseTypes(page []byte) []string {
	matches := caseTypeRe.FindAllSubmatch(page, -1)
	seen := make(map[string]struct{}, len(matches))
	var types []string
	for _, m := range matches {
		name := string(m[1])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		types = append(types, name)
	}
	return types
}
