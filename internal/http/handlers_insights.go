package http

import (
	"net/http"
	"time"

	"mindspend/internal/coaching"
	"mindspend/internal/core"
	"mindspend/internal/insight"
	"mindspend/internal/log"
)

type (
	summaryResponse struct {
		core.DailySummary
		UpdatedAt time.Time `json:"updatedAt"`
	}

	coachingResponse struct {
		OwnerID   string                `json:"ownerId"`
		Date      string                `json:"date,omitempty"`
		PeriodKey string                `json:"periodKey,omitempty"`
		AI        *core.CoachingPayload `json:"ai"`
	}
)

// handleGetSummary returns the stored summary for a date. Cached coaching is
// attached only when it still normalizes.
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	date := r.PathValue("date")
	if err := core.ValidateDateKey(date); err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	record, err := s.deps.Records.GetDailyRecord(r.Context(), owner, date)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	out := summaryResponse{DailySummary: record.Summary, UpdatedAt: record.UpdatedAt}
	if len(record.Coaching.Raw) > 0 {
		if payload, err := coaching.NormalizeCached(record.Coaching, s.deps.Coaching); err == nil {
			version := record.Coaching.Version
			out.AI = payload
			out.AIVersion = &version
		}
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleRefreshSummary(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpRefresh, err)
		return
	}
	summary, err := s.deps.Summaries.UpdateForDate(r.Context(), owner, r.PathValue("date"))
	if err != nil {
		writeError(w, r, log.OpRefresh, err)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

// handleSyncSummaries recomputes every day of the trailing window.
func (s *Server) handleSyncSummaries(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpSync, err)
		return
	}
	days, err := parseDays(r)
	if err != nil {
		writeError(w, r, log.OpSync, err)
		return
	}
	end, err := parseEnd(r, s.deps.Now(), s.deps.Location)
	if err != nil {
		writeError(w, r, log.OpSync, err)
		return
	}
	summaries, err := s.deps.Summaries.SyncRange(r.Context(), owner, insight.BuildDateRange(days, end))
	if err != nil {
		writeError(w, r, log.OpSync, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"summaries": summaries}).Write(w)
}

func (s *Server) handleStressSpend(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	days, err := parseDays(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	end, err := parseEnd(r, s.deps.Now(), s.deps.Location)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	in, err := s.deps.Insights.StressSpend(r.Context(), owner, days, end, r.URL.Query().Get("focus"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(in).Write(w)
}

// handleDailyCoaching returns the day's card, generating it when missing or
// when force=true. A day with no data answers 204.
func (s *Server) handleDailyCoaching(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpGenerate, err)
		return
	}
	if s.deps.Coach == nil {
		writeError(w, r, log.OpGenerate, errNoCoach)
		return
	}
	date := r.PathValue("date")
	if err := core.ValidateDateKey(date); err != nil {
		writeError(w, r, log.OpGenerate, err)
		return
	}

	var payload *core.CoachingPayload
	if parseBool(r, "force") {
		payload, err = s.deps.Coach.GenerateDaily(r.Context(), owner, date)
	} else {
		payload, err = s.deps.Coach.EnsureDaily(r.Context(), owner, date)
	}
	if err != nil {
		writeError(w, r, log.OpGenerate, err)
		return
	}
	if payload == nil {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewJSONResponse().Body(coachingResponse{OwnerID: owner, Date: date, AI: payload}).Write(w)
}

func (s *Server) handlePeriodCoaching(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpGenerate, err)
		return
	}
	if s.deps.Coach == nil {
		writeError(w, r, log.OpGenerate, errNoCoach)
		return
	}
	days, err := parseDays(r)
	if err != nil {
		writeError(w, r, log.OpGenerate, err)
		return
	}
	end := s.deps.Now().In(s.deps.Location)

	var payload *core.CoachingPayload
	if parseBool(r, "force") {
		payload, err = s.deps.Coach.GeneratePeriod(r.Context(), owner, days, end)
	} else {
		payload, err = s.deps.Coach.EnsurePeriod(r.Context(), owner, days, end)
	}
	if err != nil {
		writeError(w, r, log.OpGenerate, err)
		return
	}
	if payload == nil {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewJSONResponse().Body(coachingResponse{OwnerID: owner, PeriodKey: coaching.PeriodKey(days), AI: payload}).Write(w)
}
