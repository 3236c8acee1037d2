package http

import (
	"net/http"

	"mindspend/internal/log"
	"mindspend/internal/services"
)

type (
	financeRequest struct {
		Date     string `json:"date"`
		Category string `json:"category"`
		Type     string `json:"type"`
		Amount   amount `json:"amount"`
		Memo     string `json:"memo"`
	}

	financePatchRequest struct {
		Date     *string `json:"date"`
		Category *string `json:"category"`
		Type     *string `json:"type"`
		Amount   *amount `json:"amount"`
		Memo     *string `json:"memo"`
	}
)

func (s *Server) handleCreateStress(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var in services.StressInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	event, err := s.deps.Events.CreateStressEvent(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(event).Write(w)
}

func (s *Server) handleUpdateStress(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var patch services.StressPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	event, err := s.deps.Events.UpdateStressEvent(r.Context(), owner, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(event).Write(w)
}

func (s *Server) handleDeleteStress(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.deps.Events.DeleteStressEvent(r.Context(), owner, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCreateFinance(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var req financeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	event, err := s.deps.Events.CreateFinanceEvent(r.Context(), owner, services.FinanceInput{
		Date:     req.Date,
		Category: req.Category,
		Type:     req.Type,
		Amount:   int64(req.Amount),
		Memo:     req.Memo,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(event).Write(w)
}

func (s *Server) handleUpdateFinance(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var req financePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	patch := services.FinancePatch{
		Date:     req.Date,
		Category: req.Category,
		Type:     req.Type,
		Memo:     req.Memo,
	}
	if req.Amount != nil {
		v := int64(*req.Amount)
		patch.Amount = &v
	}
	event, err := s.deps.Events.UpdateFinanceEvent(r.Context(), owner, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(event).Write(w)
}

func (s *Server) handleDeleteFinance(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.deps.Events.DeleteFinanceEvent(r.Context(), owner, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
