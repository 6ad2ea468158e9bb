package entities

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// MetricType is a tracked daily metric. The set is closed and shared with the API layer.
type MetricType string

const (
	MetricTotalSupply       MetricType = "TOTAL_SUPPLY"
	MetricDelegatedSupply   MetricType = "DELEGATED_SUPPLY"
	MetricCexSupply         MetricType = "CEX_SUPPLY"
	MetricDexSupply         MetricType = "DEX_SUPPLY"
	MetricLendingSupply     MetricType = "LENDING_SUPPLY"
	MetricCirculatingSupply MetricType = "CIRCULATING_SUPPLY"
	MetricTreasury          MetricType = "TREASURY"
)

var metricFields = map[MetricType]TokenField{
	MetricTotalSupply:       FieldTotalSupply,
	MetricDelegatedSupply:   FieldDelegatedSupply,
	MetricCexSupply:         FieldCexSupply,
	MetricDexSupply:         FieldDexSupply,
	MetricLendingSupply:     FieldLendingSupply,
	MetricCirculatingSupply: FieldCirculatingSupply,
	MetricTreasury:          FieldTreasury,
}

// Valid reports whether m is a known metric
func (m MetricType) Valid() bool {
	_, ok := metricFields[m]
	return ok
}

// TokenField returns the Token counter backing the metric
func (m MetricType) TokenField() TokenField {
	return metricFields[m]
}

// ParseMetricType converts user input into a MetricType
func ParseMetricType(s string) (MetricType, error) {
	m := MetricType(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown metric %q", s)
	}
	return m, nil
}

// BucketOrdering decides how open/close are chosen inside a day
type BucketOrdering string

const (
	// OrderArrival uses arrival order: first observation opens, last one closes.
	// Requires in-order delivery within a day.
	OrderArrival BucketOrdering = "arrival"
	// OrderTimestamp picks open/close by the smallest/largest event timestamp seen.
	OrderTimestamp BucketOrdering = "timestamp"
)

// DayStart truncates ts to midnight UTC of its calendar day
func DayStart(ts time.Time) time.Time {
	u := ts.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// BucketKey identifies one daily bucket
type BucketKey struct {
	Date       time.Time
	MetricType MetricType
	DaoID      DaoID
	TokenID    string
}

// Observation is one new value of a metric
type Observation struct {
	MetricType MetricType
	DaoID      DaoID
	TokenID    string
	Timestamp  time.Time
	Value      *big.Int
	Previous   *big.Int
}

// Key returns the bucket the observation falls into
func (o Observation) Key() BucketKey {
	return BucketKey{
		Date:       DayStart(o.Timestamp),
		MetricType: o.MetricType,
		DaoID:      o.DaoID,
		TokenID:    o.TokenID,
	}
}

// Volume is |Value - Previous|
func (o Observation) Volume() *big.Int {
	return AbsDiff(o.Value, o.Previous)
}

// DayBucket is an OHLC-style rollup of one metric over one UTC day
type DayBucket struct {
	Date        time.Time
	MetricType  MetricType
	DaoID       DaoID
	TokenID     string
	Open        *big.Int
	Close       *big.Int
	Low         *big.Int
	High        *big.Int
	Average     *big.Int
	Volume      *big.Int
	Count       int64
	FirstUpdate time.Time
	LastUpdate  time.Time
}

// NewDayBucket opens a bucket from its first observation
func NewDayBucket(o Observation) *DayBucket {
	key := o.Key()
	return &DayBucket{
		Date:        key.Date,
		MetricType:  key.MetricType,
		DaoID:       key.DaoID,
		TokenID:     key.TokenID,
		Open:        CopyAmount(o.Value),
		Close:       CopyAmount(o.Value),
		Low:         CopyAmount(o.Value),
		High:        CopyAmount(o.Value),
		Average:     CopyAmount(o.Value),
		Volume:      o.Volume(),
		Count:       1,
		FirstUpdate: o.Timestamp.UTC(),
		LastUpdate:  o.Timestamp.UTC(),
	}
}

// Key returns the bucket key
func (b *DayBucket) Key() BucketKey {
	return BucketKey{Date: b.Date, MetricType: b.MetricType, DaoID: b.DaoID, TokenID: b.TokenID}
}

// Fold applies one more observation to the bucket.
// The average is an incremental mean with integer (truncating) division.
func (b *DayBucket) Fold(o Observation, ordering BucketOrdering) {
	v := orZero(o.Value)
	ts := o.Timestamp.UTC()

	switch ordering {
	case OrderTimestamp:
		if !ts.Before(b.LastUpdate) {
			b.Close = CopyAmount(v)
			b.LastUpdate = ts
		}
		if ts.Before(b.FirstUpdate) {
			b.Open = CopyAmount(v)
			b.FirstUpdate = ts
		}
	default:
		b.Close = CopyAmount(v)
		b.LastUpdate = ts
	}

	if v.Cmp(b.High) > 0 {
		b.High = CopyAmount(v)
	}
	if v.Cmp(b.Low) < 0 {
		b.Low = CopyAmount(v)
	}

	sum := new(big.Int).Mul(b.Average, big.NewInt(b.Count))
	sum.Add(sum, v)
	b.Average = sum.Quo(sum, big.NewInt(b.Count+1))

	b.Volume = new(big.Int).Add(b.Volume, o.Volume())
	b.Count++
}

// Clone returns a deep copy
func (b *DayBucket) Clone() *DayBucket {
	c := *b
	c.Open = CopyAmount(b.Open)
	c.Close = CopyAmount(b.Close)
	c.Low = CopyAmount(b.Low)
	c.High = CopyAmount(b.High)
	c.Average = CopyAmount(b.Average)
	c.Volume = CopyAmount(b.Volume)
	return &c
}
