package entities

import (
	"math/big"
	"testing"
	"time"
)

func obs(v int64, prev int64, ts time.Time) Observation {
	return Observation{
		MetricType: MetricCexSupply,
		DaoID:      DaoENS,
		TokenID:    "0xtoken",
		Timestamp:  ts,
		Value:      big.NewInt(v),
		Previous:   big.NewInt(prev),
	}
}

func TestDayBucket_Fold(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	b := NewDayBucket(obs(10, 0, day.Add(1*time.Hour)))
	b.Fold(obs(30, 10, day.Add(2*time.Hour)), OrderArrival)
	b.Fold(obs(20, 30, day.Add(3*time.Hour)), OrderArrival)

	tests := []struct {
		name string
		got  *big.Int
		want int64
	}{
		{"open", b.Open, 10},
		{"close", b.Close, 20},
		{"high", b.High, 30},
		{"low", b.Low, 10},
		{"average", b.Average, 20},
		{"volume", b.Volume, 40},
	}
	for _, tt := range tests {
		if tt.got.Int64() != tt.want {
			t.Errorf("%s: expected %d, got %s", tt.name, tt.want, tt.got)
		}
	}
	if b.Count != 3 {
		t.Errorf("expected count 3, got %d", b.Count)
	}
	if !b.Date.Equal(day) {
		t.Errorf("expected date %v, got %v", day, b.Date)
	}
}

func TestDayBucket_FoldTruncatesAverage(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := NewDayBucket(obs(1, 0, day))
	b.Fold(obs(2, 1, day), OrderArrival)

	// (1*1 + 2) / 2 = 1 with integer division
	if b.Average.Int64() != 1 {
		t.Errorf("expected average 1, got %s", b.Average)
	}
}

func TestDayBucket_FoldArrivalOrderIgnoresTimestamps(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := NewDayBucket(obs(10, 0, day.Add(5*time.Hour)))
	b.Fold(obs(50, 10, day.Add(1*time.Hour)), OrderArrival)

	if b.Open.Int64() != 10 {
		t.Errorf("expected open 10, got %s", b.Open)
	}
	if b.Close.Int64() != 50 {
		t.Errorf("expected close 50, got %s", b.Close)
	}
}

func TestDayBucket_FoldTimestampOrder(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := NewDayBucket(obs(10, 0, day.Add(5*time.Hour)))

	// late-arriving earlier observation becomes the open, close is unchanged
	b.Fold(obs(50, 10, day.Add(1*time.Hour)), OrderTimestamp)
	if b.Open.Int64() != 50 {
		t.Errorf("expected open 50, got %s", b.Open)
	}
	if b.Close.Int64() != 10 {
		t.Errorf("expected close 10, got %s", b.Close)
	}

	b.Fold(obs(70, 50, day.Add(9*time.Hour)), OrderTimestamp)
	if b.Close.Int64() != 70 {
		t.Errorf("expected close 70, got %s", b.Close)
	}
	if !b.FirstUpdate.Equal(day.Add(1*time.Hour)) || !b.LastUpdate.Equal(day.Add(9*time.Hour)) {
		t.Errorf("unexpected update window %v - %v", b.FirstUpdate, b.LastUpdate)
	}
	if b.High.Int64() != 70 || b.Low.Int64() != 10 {
		t.Errorf("unexpected high/low %s/%s", b.High, b.Low)
	}
}

func TestNewDayBucket_VolumeFromPrevious(t *testing.T) {
	b := NewDayBucket(obs(100, 400, time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)))
	if b.Volume.Int64() != 300 {
		t.Errorf("expected volume 300, got %s", b.Volume)
	}
	if b.Count != 1 {
		t.Errorf("expected count 1, got %d", b.Count)
	}
}

func TestDayStart(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	// 02:00 local on the 2nd is 19:00 UTC on the 1st
	ts := time.Date(2024, 3, 2, 2, 0, 0, 0, loc)
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := DayStart(ts); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseMetricType(t *testing.T) {
	tests := []struct {
		in      string
		want    MetricType
		wantErr bool
	}{
		{"TOTAL_SUPPLY", MetricTotalSupply, false},
		{"cex_supply", MetricCexSupply, false},
		{" treasury ", MetricTreasury, false},
		{"VOTING_POWER", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMetricType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMetricType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMetricType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMetricType_TokenField(t *testing.T) {
	if MetricCirculatingSupply.TokenField() != FieldCirculatingSupply {
		t.Errorf("unexpected field %s", MetricCirculatingSupply.TokenField())
	}
	if MetricDelegatedSupply.TokenField() != FieldDelegatedSupply {
		t.Errorf("unexpected field %s", MetricDelegatedSupply.TokenField())
	}
}
