package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/moimhub/club-system/middleware"
	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/services"
)

type MembershipHandler struct {
	membershipService services.MembershipService
}

func NewMembershipHandler(membershipService services.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipService: membershipService}
}

// RequestJoin — POST /clubs/{clubID}/members: заявка на вступление.
func (h *MembershipHandler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	membership, err := h.membershipService.RequestJoin(r.Context(), clubID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"membership": membership,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMembers — GET /clubs/{clubID}/members?status=pending|approved.
func (h *MembershipHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var status *models.MembershipStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		s := models.MembershipStatus(statusStr)
		if s != models.MembershipStatusPending && s != models.MembershipStatusApproved {
			badRequestResponse(w, r, errors.New("status must be pending or approved"))
			return
		}
		status = &s
	}

	members, err := h.membershipService.ListMembers(r.Context(), currentUserID, clubID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"members": members,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Approve — POST /memberships/{membershipID}/approve.
func (h *MembershipHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.membershipService.Approve)
}

// Reject — POST /memberships/{membershipID}/reject.
func (h *MembershipHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.membershipService.Reject)
}

// Kick — DELETE /memberships/{membershipID}.
func (h *MembershipHandler) Kick(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.membershipService.Kick)
}

func (h *MembershipHandler) resolve(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actorID, membershipID int) error,
) {
	membershipID, err := getIDFromURL(r, "membershipID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := op(r.Context(), currentUserID, membershipID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangeRole — PATCH /memberships/{membershipID}/role: staff <-> member.
func (h *MembershipHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	membershipID, err := getIDFromURL(r, "membershipID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input struct {
		Role string `json:"role"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.membershipService.ChangeRole(r.Context(), currentUserID, membershipID, models.ClubRole(input.Role)); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TransferManager — POST /clubs/{clubID}/manager/transfer: атомарная
// передача роли manager текущим менеджером.
func (h *MembershipHandler) TransferManager(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input struct {
		ToUserID int `json:"to_user_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.ToUserID <= 0 {
		badRequestResponse(w, r, errors.New("to_user_id is required"))
		return
	}

	if err := h.membershipService.TransferManager(r.Context(), clubID, currentUserID, input.ToUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
