package agmarknet

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mandi/internal/models"
)

// Filters is the provider-side filter set. Values are matched exactly by the
// provider, which stores them title-cased. Date uses the provider's
// DD/MM/YYYY convention and is optional.
type Filters struct {
	Commodity string
	State     string
	District  string
	Market    string
	Date      string
	Limit     int
	Offset    int
}

type envelope struct {
	Total   int               `json:"total"`
	Count   int               `json:"count"`
	Records []json.RawMessage `json:"records"`
}

// Record is one provider row. Field names vary in casing across provider
// versions ("State" vs "state", "Min_Price" vs "min_price"), so decoding
// goes through a case-folded key map rather than struct tags.
type Record struct {
	State           string
	District        string
	Market          string
	Commodity       string
	Variety         string
	ArrivalDate     string
	MinPrice        decimal.Decimal
	MaxPrice        decimal.Decimal
	ModalPrice      decimal.Decimal
	ArrivalQuantity *decimal.Decimal
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	fields := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		fields[foldKey(k)] = v
	}
	r.State = stringField(fields, "state")
	r.District = stringField(fields, "district")
	r.Market = stringField(fields, "market")
	r.Commodity = stringField(fields, "commodity")
	r.Variety = stringField(fields, "variety")
	r.ArrivalDate = stringField(fields, "arrivaldate")

	var err error
	if r.MinPrice, err = decimalField(fields, "minprice"); err != nil {
		return err
	}
	if r.MaxPrice, err = decimalField(fields, "maxprice"); err != nil {
		return err
	}
	if r.ModalPrice, err = decimalField(fields, "modalprice"); err != nil {
		return err
	}
	if raw, ok := fields["arrivalquantity"]; ok {
		if q, err := parseDecimalRaw(raw); err == nil {
			r.ArrivalQuantity = &q
		}
	}
	return nil
}

// ToModel converts a provider row. Rows whose arrival date cannot be parsed
// are unusable and reported as an error; price ordering violations are kept
// as delivered.
func (r Record) ToModel() (models.PriceRecord, error) {
	date, err := parseArrivalDate(r.ArrivalDate)
	if err != nil {
		return models.PriceRecord{}, err
	}
	return models.PriceRecord{
		Commodity:       strings.TrimSpace(r.Commodity),
		Variety:         strings.TrimSpace(r.Variety),
		State:           strings.TrimSpace(r.State),
		District:        strings.TrimSpace(r.District),
		Market:          strings.TrimSpace(r.Market),
		ArrivalDate:     date,
		MinPrice:        r.MinPrice,
		MaxPrice:        r.MaxPrice,
		ModalPrice:      r.ModalPrice,
		ArrivalQuantity: r.ArrivalQuantity,
	}, nil
}

// FormatDate renders a date in the provider's DD/MM/YYYY filter convention.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

func parseArrivalDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"02/01/2006", "2006-01-02", "02-01-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable arrival date %q", s)
}

// foldKey lowercases and strips underscores so "Min_Price", "min_price" and
// "minPrice" all land on the same key.
func foldKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "_", "")
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// Some provider versions emit bare numbers for string-ish fields.
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strings.TrimSpace(string(raw))
	}
	return ""
}

func decimalField(fields map[string]json.RawMessage, key string) (decimal.Decimal, error) {
	raw, ok := fields[key]
	if !ok {
		return decimal.Zero, nil
	}
	return parseDecimalRaw(raw)
}

// parseDecimalRaw accepts numbers or numeric strings; "NR" and empty strings
// (the provider's not-reported markers) decode as zero.
func parseDecimalRaw(raw json.RawMessage) (decimal.Decimal, error) {
	if string(raw) == "null" {
		return decimal.Zero, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "nr") || strings.EqualFold(s, "na") {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return decimal.NewFromFloat(f), nil
	}
	return decimal.Zero, fmt.Errorf("invalid numeric value: %s", string(raw))
}
