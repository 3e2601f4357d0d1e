package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/tradepoll/delivery-service/internal/api/middleware"
	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/service"
)

// PollHandler handles the poll CRUD and voting endpoints.
type PollHandler struct {
	svc    *service.PollService
	logger *zap.Logger
}

func NewPollHandler(svc *service.PollService, logger *zap.Logger) *PollHandler {
	return &PollHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/polls
//
// @Summary  Create a poll and announce it to the group chat
// @Tags     polls
// @Accept   json
// @Produce  json
// @Param    body  body      domain.CreatePollRequest  true  "Poll payload"
// @Success  201   {object}  domain.Poll
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/polls [post]
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	poll, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.logger.Warn("create poll failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, poll)
}

// GetByID handles GET /api/v1/polls/{id}
//
// @Summary  Get a poll with its options
// @Tags     polls
// @Produce  json
// @Param    id   path      int  true  "Poll ID"
// @Success  200  {object}  domain.Poll
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/polls/{id} [get]
func (h *PollHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	poll, err := h.svc.Get(r.Context(), pollID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, poll)
}

// List handles GET /api/v1/polls?limit=&offset=
//
// @Summary  List polls, newest first
// @Tags     polls
// @Produce  json
// @Param    limit   query     int  false  "Page size (default 20, max 100)"
// @Param    offset  query     int  false  "Offset"
// @Success  200     {array}   domain.Poll
// @Router   /api/v1/polls [get]
func (h *PollHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter domain.ListFilter
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	polls, err := h.svc.List(r.Context(), filter)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, polls)
}

// RecordResponse handles POST /api/v1/polls/{id}/options/{optionID}/responses
//
// @Summary  Record a user's vote on an option
// @Tags     polls
// @Accept   json
// @Produce  json
// @Param    id        path      int                           true  "Poll ID"
// @Param    optionID  path      int                           true  "Option ID"
// @Param    body      body      domain.RecordResponseRequest  true  "Voter"
// @Success  201       {object}  domain.Response
// @Failure  409       {object}  map[string]string
// @Router   /api/v1/polls/{id}/options/{optionID}/responses [post]
func (h *PollHandler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	key, ok := selectionPath(w, r)
	if !ok {
		return
	}
	var req domain.RecordResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	key.UserID = req.UserID

	resp, err := h.svc.RecordResponse(r.Context(), key, req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// Confirm handles POST /api/v1/polls/{id}/options/{optionID}/confirm
//
// @Summary  Confirm a selection and schedule screenshot delivery
// @Tags     polls
// @Accept   json
// @Produce  json
// @Param    id        path      int                           true  "Poll ID"
// @Param    optionID  path      int                           true  "Option ID"
// @Param    body      body      domain.RecordResponseRequest  true  "User confirming"
// @Success  200       {object}  map[string]bool
// @Failure  404       {object}  map[string]string
// @Router   /api/v1/polls/{id}/options/{optionID}/confirm [post]
func (h *PollHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	key, ok := selectionPath(w, r)
	if !ok {
		return
	}
	var req domain.RecordResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}
	key.UserID = req.UserID

	scheduled, err := h.svc.Confirm(r.Context(), key)
	if err != nil {
		h.logger.Warn("confirm selection failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Int64("poll_id", key.PollID),
			zap.Int64("user_id", key.UserID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"scheduled": scheduled})
}

// pathID parses one numeric chi path parameter, responding 400 on garbage.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func selectionPath(w http.ResponseWriter, r *http.Request) (domain.SelectionKey, bool) {
	pollID, ok := pathID(w, r, "id")
	if !ok {
		return domain.SelectionKey{}, false
	}
	optionID, ok := pathID(w, r, "optionID")
	if !ok {
		return domain.SelectionKey{}, false
	}
	return domain.SelectionKey{PollID: pollID, OptionID: optionID}, true
}
