package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one reported price observation for a commodity at a market
// on an arrival date. The upstream provider does not guarantee
// min <= modal <= max; records violating it are stored as-is.
type PriceRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	Commodity string `gorm:"type:varchar(100);not null;uniqueIndex:idx_price_obs;index" json:"commodity"`
	Variety   string `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_price_obs" json:"variety,omitempty"`
	State     string `gorm:"type:varchar(100);not null;uniqueIndex:idx_price_obs;index" json:"state"`
	District  string `gorm:"type:varchar(100);not null;uniqueIndex:idx_price_obs;index" json:"district"`
	Market    string `gorm:"type:varchar(100);not null;uniqueIndex:idx_price_obs;index" json:"market"`

	ArrivalDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_price_obs;index" json:"arrival_date"`

	MinPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"min_price"`
	MaxPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"max_price"`
	ModalPrice decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"modal_price"`

	ArrivalQuantity *decimal.Decimal `gorm:"type:numeric(14,2)" json:"arrival_quantity,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"-"`
}

func (PriceRecord) TableName() string {
	return "price_records"
}

// IdentityKey is the deduplication identity:
// (arrival date, state, district, market, commodity, variety).
func (r PriceRecord) IdentityKey() string {
	return strings.ToLower(strings.Join([]string{
		r.ArrivalDate.Format("2006-01-02"),
		r.State,
		r.District,
		r.Market,
		r.Commodity,
		r.Variety,
	}, "|"))
}

// DedupeRecords keeps the first occurrence of each identity, preserving order.
func DedupeRecords(records []PriceRecord) []PriceRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]PriceRecord, 0, len(records))
	for _, r := range records {
		k := r.IdentityKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
