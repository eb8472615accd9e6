// Package booking talks to the department booking forms and reduces their
// raw availability payloads into per-location results.
package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DaySlots is one calendar date with its open time slots. Dates are kept in
// the order the server emitted them; see Reduce for why that matters.
type DaySlots struct {
	Date  string // YYYY-MM-DD
	Times []string
}

// LocationAvailability is the raw per-location availability of one lookup.
type LocationAvailability struct {
	Caption string
	Days    []DaySlots
}

// AvailabilityResult is one location that has at least one open slot.
type AvailabilityResult struct {
	LocationCaption string
	EarliestDate    string // YYYY-MM-DD as reported by the server
	TimeSlots       []string
}

// decodeAppointments parses the jsonAppoints payload:
//
//	{
//	  "<place id>": {
//	    "caption": "Führerscheinstelle Garmischer Str. 19/21",
//	    "id": "a6a84abc3c8666ca80a3655eef15bade",
//	    "appoints": {
//	      "2019-01-25": ["09:05", "09:30"],
//	      "2019-01-26": []
//	    }
//	  }
//	}
//
// encoding/json maps do not preserve key order, so "appoints" is walked with
// a token decoder to retain the server's date ordering.
func decodeAppointments(data []byte) ([]LocationAvailability, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var out []LocationAvailability
	for dec.More() {
		// place id key; the value object carries the caption we care about
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		loc, err := decodeLocation(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeLocation(dec *json.Decoder) (LocationAvailability, error) {
	var loc LocationAvailability
	if err := expectDelim(dec, '{'); err != nil {
		return loc, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return loc, err
		}
		key, ok := tok.(string)
		if !ok {
			return loc, fmt.Errorf("availability payload: unexpected key token %v", tok)
		}
		switch key {
		case "caption":
			if err := dec.Decode(&loc.Caption); err != nil {
				return loc, err
			}
		case "appoints":
			days, err := decodeDays(dec)
			if err != nil {
				return loc, err
			}
			loc.Days = days
		default:
			// skip unknown fields ("id" and whatever the form adds next)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return loc, err
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return loc, err
	}
	return loc, nil
}

func decodeDays(dec *json.Decoder) ([]DaySlots, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var days []DaySlots
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		date, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("availability payload: unexpected date token %v", tok)
		}
		var times []string
		if err := dec.Decode(&times); err != nil {
			return nil, err
		}
		days = append(days, DaySlots{Date: date, Times: times})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return days, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return errors.New("availability payload: unexpected structure")
	}
	return nil
}
