package booking

import (
	"context"
	"errors"

	"terminbot/internal/catalog"
	"terminbot/pkg/logx"
)

// ErrUnknownDepartment means a subscription references a department ID that
// is no longer in the registry. Treated as transient by callers: the
// registry may be extended again.
var ErrUnknownDepartment = errors.New("unknown department")

// Probe resolves a department and reduces one raw lookup into per-location
// results.
type Probe struct {
	reg     *catalog.Registry
	scraper Scraper
	log     logx.Logger
}

func NewProbe(reg *catalog.Registry, scraper Scraper, log logx.Logger) *Probe {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Probe{reg: reg, scraper: scraper, log: log}
}

// Check runs one availability lookup. It returns ErrUnsupportedType when the
// form rejected the appointment type, and an empty slice when the type is
// valid but nothing is free anywhere.
func (p *Probe) Check(ctx context.Context, departmentID, appointmentType string) ([]AvailabilityResult, error) {
	dep, ok := p.reg.ByID(departmentID)
	if !ok {
		return nil, ErrUnknownDepartment
	}

	p.log.Debug("availability lookup",
		logx.String("department", dep.ID),
		logx.String("type", appointmentType))

	raw, err := p.scraper.FetchRawAvailability(ctx, dep, appointmentType)
	if err != nil {
		return nil, err
	}
	return Reduce(raw), nil
}

// Reduce picks, for every location, the first date in server-provided order
// that has a non-empty slot list. The form emits dates in its own order
// (usually, but not provably, chronological); first-match is the behavior
// users have relied on and is kept as-is. Locations with no open slots on
// any date are omitted.
func Reduce(raw []LocationAvailability) []AvailabilityResult {
	var out []AvailabilityResult
	for _, loc := range raw {
		for _, day := range loc.Days {
			if len(day.Times) == 0 {
				continue
			}
			out = append(out, AvailabilityResult{
				LocationCaption: loc.Caption,
				EarliestDate:    day.Date,
				TimeSlots:       append([]string(nil), day.Times...),
			})
			break
		}
	}
	return out
}
