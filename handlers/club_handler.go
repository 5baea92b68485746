package handlers

import (
	"errors"
	"net/http"

	"github.com/moimhub/club-system/middleware"
	"github.com/moimhub/club-system/services"
)

type ClubHandler struct {
	clubService services.ClubService
}

func NewClubHandler(clubService services.ClubService) *ClubHandler {
	return &ClubHandler{clubService: clubService}
}

func (h *ClubHandler) CreateClub(w http.ResponseWriter, r *http.Request) {
	var input services.CreateClubInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	club, err := h.clubService.CreateClub(r.Context(), currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"club": club,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) GetClub(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	club, err := h.clubService.GetClub(r.Context(), clubID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"club": club,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) ListClubs(w http.ResponseWriter, r *http.Request) {
	officialOnly := r.URL.Query().Get("official") == "true"

	clubs, err := h.clubService.ListClubs(r.Context(), officialOnly)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"clubs": clubs,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) UpdateClub(w http.ResponseWriter, r *http.Request) {
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

	var input services.UpdateClubInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	club, err := h.clubService.UpdateClub(r.Context(), currentUserID, clubID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"club": club,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) DeleteClub(w http.ResponseWriter, r *http.Request) {
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

	if err := h.clubService.DeleteClub(r.Context(), currentUserID, clubID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ClubHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
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

	file, header, err := r.FormFile("cover")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		badRequestResponse(w, r, errors.New("content type required"))
		return
	}

	club, err := h.clubService.UploadCover(r.Context(), currentUserID, clubID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"club": club,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ClubHandler) Overview(w http.ResponseWriter, r *http.Request) {
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

	overview, err := h.clubService.Overview(r.Context(), currentUserID, clubID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"overview": overview,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
