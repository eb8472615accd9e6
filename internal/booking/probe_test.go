package booking

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"terminbot/internal/catalog"
	"terminbot/pkg/logx"
)

func TestDecodeAppointmentsKeepsServerOrder(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"place1": {
			"caption": "Garmischer Str. 19/21",
			"id": "a6a84abc3c8666ca80a3655eef15bade",
			"appoints": {
				"2019-01-26": [],
				"2019-01-25": ["09:05", "09:30"],
				"2019-01-24": ["08:00"]
			}
		}
	}`)

	locs, err := decodeAppointments(payload)
	if err != nil {
		t.Fatalf("decodeAppointments error: %v", err)
	}
	if len(locs) != 1 {
		t.Fatalf("locations = %d, want 1", len(locs))
	}
	if locs[0].Caption != "Garmischer Str. 19/21" {
		t.Fatalf("caption = %q", locs[0].Caption)
	}
	gotDates := []string{locs[0].Days[0].Date, locs[0].Days[1].Date, locs[0].Days[2].Date}
	wantDates := []string{"2019-01-26", "2019-01-25", "2019-01-24"}
	if !reflect.DeepEqual(gotDates, wantDates) {
		t.Fatalf("dates = %v, want server order %v", gotDates, wantDates)
	}
}

func TestDecodeAppointmentsMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{`[]`, `{"p": {"appoints": []}}`, `{"p":`} {
		if _, err := decodeAppointments([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestReduceFirstNonEmptyInServerOrder(t *testing.T) {
	t.Parallel()
	raw := []LocationAvailability{
		{
			Caption: "Location A",
			Days: []DaySlots{
				{Date: "2026-09-03", Times: nil},
				{Date: "2026-09-04", Times: []string{"10:15", "10:40"}},
				// calendar-earlier but later in server order, must lose
				{Date: "2026-09-01", Times: []string{"08:00"}},
			},
		},
		{
			Caption: "Location B",
			Days: []DaySlots{
				{Date: "2026-09-02", Times: nil},
			},
		},
	}

	got := Reduce(raw)
	want := []AvailabilityResult{
		{LocationCaption: "Location A", EarliestDate: "2026-09-04", TimeSlots: []string{"10:15", "10:40"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Reduce = %+v, want %+v", got, want)
	}
}

func TestReduceEmpty(t *testing.T) {
	t.Parallel()
	if got := Reduce(nil); len(got) != 0 {
		t.Fatalf("Reduce(nil) = %+v, want empty", got)
	}
	if got := Reduce([]LocationAvailability{{Caption: "X"}}); len(got) != 0 {
		t.Fatalf("Reduce with no days = %+v, want empty", got)
	}
}

type stubScraper struct {
	raw []LocationAvailability
	err error
}

func (s stubScraper) FetchRawAvailability(context.Context, catalog.Department, string) ([]LocationAvailability, error) {
	return s.raw, s.err
}

func TestProbeCheck(t *testing.T) {
	t.Parallel()
	reg := catalog.NewRegistry(catalog.Department{ID: "fs", Name: "Führerscheinstelle"})

	t.Run("unknown department", func(t *testing.T) {
		p := NewProbe(reg, stubScraper{}, logx.Nop())
		if _, err := p.Check(context.Background(), "nope", "anything"); !errors.Is(err, ErrUnknownDepartment) {
			t.Fatalf("err = %v, want ErrUnknownDepartment", err)
		}
	})

	t.Run("unsupported type passes through", func(t *testing.T) {
		p := NewProbe(reg, stubScraper{err: ErrUnsupportedType}, logx.Nop())
		if _, err := p.Check(context.Background(), "fs", "gone"); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("err = %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("results reduced", func(t *testing.T) {
		p := NewProbe(reg, stubScraper{raw: []LocationAvailability{
			{Caption: "A", Days: []DaySlots{{Date: "2026-09-04", Times: []string{"10:15"}}}},
		}}, logx.Nop())
		got, err := p.Check(context.Background(), "fs", "FS Umschreibung Ausländischer FS")
		if err != nil {
			t.Fatalf("Check error: %v", err)
		}
		if len(got) != 1 || got[0].EarliestDate != "2026-09-04" {
			t.Fatalf("Check = %+v", got)
		}
	})
}
