package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mindspend/internal/core"
	"mindspend/internal/services"
)

const (
	// OwnerHeader carries the authenticated owner, set by the fronting gateway.
	OwnerHeader = "X-Owner-ID"

	defaultPeriodDays = 14
	maxBodyBytes      = 64 << 10
)

func ownerID(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		return "", errMissingOwner
	}
	return owner, nil
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// parseDays reads ?days=, defaulting when absent.
func parseDays(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("days"))
	if v == "" {
		return defaultPeriodDays, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 1 || days > services.MaxPeriodDays {
		return 0, &core.ValidationError{Field: "days", Reason: fmt.Sprintf("must be an integer between 1 and %d", services.MaxPeriodDays)}
	}
	return days, nil
}

// parseEnd reads ?end=YYYY-MM-DD in loc, defaulting to now.
func parseEnd(r *http.Request, now time.Time, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("end"))
	if v == "" {
		return now.In(loc), nil
	}
	t, err := core.ParseDateKey(v, loc)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: "end", Reason: "must be YYYY-MM-DD"}
	}
	return t, nil
}

func parseBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// amount accepts a JSON number or a numeric string such as "12,000".
type amount int64

func (a *amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	v, err := core.ParseAmount(raw)
	if err != nil {
		return &core.ValidationError{Field: "amount", Reason: "must be a non-negative number"}
	}
	*a = amount(v)
	return nil
}
