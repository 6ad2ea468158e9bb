package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"0x1111111111111111111111111111111111111111", true},
		{"0xABCDEFabcdef0123456789ABCDEFabcdef012345", true},
		{"0X1111111111111111111111111111111111111111", true},
		{"1111111111111111111111111111111111111111", false},
		{"0x111111111111111111111111111111111111111", false},
		{"0x11111111111111111111111111111111111111111", false},
		{"0xg111111111111111111111111111111111111111", false},
		{"0x", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := isValidAddress(tt.addr); got != tt.want {
				t.Errorf("isValidAddress(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestQueryParams_Timestamp(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"rfc3339", "2024-01-15T10:30:00+02:00", time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)},
		{"date", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"unix seconds", "1705314600", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueryParams(httptest.NewRequest(http.MethodGet, "/?at="+url.QueryEscape(tt.value), nil))
			got := q.timestamp("at")
			if q.err != nil {
				t.Fatalf("unexpected error: %v", q.err)
			}
			if got == nil || !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestQueryParams_FirstErrorWins(t *testing.T) {
	q := newQueryParams(httptest.NewRequest(http.MethodGet, "/?limit=x&offset=y", nil))

	if got := q.integer("limit", 100); got != 100 {
		t.Errorf("expected default on error, got %d", got)
	}
	q.integer("offset", 0)

	if q.err == nil || q.err.Error() != `invalid limit: "x"` {
		t.Errorf("expected limit error, got %v", q.err)
	}
}

func TestQueryParams_Addresses(t *testing.T) {
	target := "/?addresses=0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,%200x1111111111111111111111111111111111111111,&addresses=0x2222222222222222222222222222222222222222"
	q := newQueryParams(httptest.NewRequest(http.MethodGet, target, nil))

	got := q.addresses("addresses")
	if q.err != nil {
		t.Fatalf("unexpected error: %v", q.err)
	}
	want := []string{
		"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d addresses, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("address %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestQueryParams_BoolAndAscending(t *testing.T) {
	q := newQueryParams(httptest.NewRequest(http.MethodGet, "/?is_cex=true&order=ASC", nil))

	flag := q.boolPtr("is_cex")
	if flag == nil || !*flag {
		t.Errorf("expected true flag, got %v", flag)
	}
	if q.boolPtr("is_dex") != nil {
		t.Error("expected nil for an absent flag")
	}
	if !q.ascending("order") {
		t.Error("expected ascending order")
	}
	if q.err != nil {
		t.Errorf("unexpected error: %v", q.err)
	}
}

func TestRespondResult(t *testing.T) {
	type payload struct {
		Value string `json:"value"`
	}

	tests := []struct {
		name     string
		response *payload
		err      error
		want     int
	}{
		{"found", &payload{Value: "x"}, nil, http.StatusOK},
		{"not found", nil, nil, http.StatusNotFound},
		{"failure", nil, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondResult(rec, zap.NewNop(), "thing", tt.response, tt.err)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
		})
	}
}
