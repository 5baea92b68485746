package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/moimhub/club-system/middleware"
	"github.com/moimhub/club-system/services"
)

type GroupHandler struct {
	groupService services.GroupService
}

func NewGroupHandler(groupService services.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
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
		Name string `json:"name"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	group, err := h.groupService.CreateGroup(r.Context(), currentUserID, clubID, input.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"group": group,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
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

	groups, err := h.groupService.ListGroups(r.Context(), currentUserID, clubID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"groups": groups,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GroupHandler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := getIDFromURL(r, "groupID")
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
		Name string `json:"name"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.groupService.RenameGroup(r.Context(), currentUserID, groupID, input.Name); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.groupService.DeleteGroup(r.Context(), currentUserID, groupID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := getIDFromURL(r, "groupID")
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
		UserID int `json:"user_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.UserID <= 0 {
		badRequestResponse(w, r, errors.New("user_id is required"))
		return
	}

	member, err := h.groupService.AddMember(r.Context(), currentUserID, groupID, input.UserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"member": member,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.memberOp(w, r, h.groupService.RemoveMember)
}

func (h *GroupHandler) PromoteLeader(w http.ResponseWriter, r *http.Request) {
	h.memberOp(w, r, h.groupService.PromoteLeader)
}

func (h *GroupHandler) DemoteLeader(w http.ResponseWriter, r *http.Request) {
	h.memberOp(w, r, h.groupService.DemoteLeader)
}

func (h *GroupHandler) memberOp(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actorID, groupID, userID int) error,
) {
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := op(r.Context(), currentUserID, groupID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) ListGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	members, err := h.groupService.ListGroupMembers(r.Context(), currentUserID, groupID)
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
