package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

const dateLayout = "2006-01-02"

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondResult writes response, or 404 when the service found nothing for the DAO
func respondResult[T any](w http.ResponseWriter, logger *zap.Logger, what string, response *T, err error) {
	if err != nil {
		logger.Error("Failed to get "+what, zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get "+what)
		return
	}
	if response == nil {
		respondError(w, http.StatusNotFound, what+" not found")
		return
	}
	respondJSON(w, http.StatusOK, response)
}

// isValidAddress accepts 0x-prefixed 20-byte hex addresses in any case
func isValidAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	return common.IsHexAddress(addr)
}

// daoParam reads the {dao} path parameter; it writes a 404 and returns false when unknown
func daoParam(w http.ResponseWriter, r *http.Request) (entities.DaoID, bool) {
	daoID, err := entities.ParseDaoID(chi.URLParam(r, "dao"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return daoID, true
}

// queryParams collects the first parse error so handlers can answer 400 once
type queryParams struct {
	r   *http.Request
	err error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{r: r}
}

func (q *queryParams) fail(name, value string) {
	if q.err == nil {
		q.err = fmt.Errorf("invalid %s: %q", name, value)
	}
}

func (q *queryParams) integer(name string, def int) int {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		q.fail(name, v)
		return def
	}
	return n
}

func (q *queryParams) int64Ptr(name string) *int64 {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		q.fail(name, v)
		return nil
	}
	return &n
}

func (q *queryParams) boolPtr(name string) *bool {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(name, v)
		return nil
	}
	return &b
}

// timestamp accepts RFC3339 timestamps, plain dates and unix seconds
func (q *queryParams) timestamp(name string) *time.Time {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return &t
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t
	}
	q.fail(name, v)
	return nil
}

func (q *queryParams) address(name string) *string {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	if !isValidAddress(v) {
		q.fail(name, v)
		return nil
	}
	addr := strings.ToLower(v)
	return &addr
}

// addresses reads a comma separated list; repeated parameters are merged
func (q *queryParams) addresses(name string) []string {
	var out []string
	for _, raw := range q.r.URL.Query()[name] {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if !isValidAddress(v) {
				q.fail(name, v)
				return nil
			}
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}

// ascending reads "asc"/"desc" and reports whether the order is ascending
func (q *queryParams) ascending(name string) bool {
	v := strings.ToLower(q.r.URL.Query().Get(name))
	switch v {
	case "", "desc":
		return false
	case "asc":
		return true
	}
	q.fail(name, v)
	return false
}
