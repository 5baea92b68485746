package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/moimhub/club-system/middleware"
	"github.com/moimhub/club-system/services"
)

type BoardHandler struct {
	boardService services.BoardService
}

func NewBoardHandler(boardService services.BoardService) *BoardHandler {
	return &BoardHandler{boardService: boardService}
}

func (h *BoardHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
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

	var input services.CreatePostInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.ClubID = clubID

	post, err := h.boardService.CreatePost(r.Context(), currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"post": post,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BoardHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := getIDFromURL(r, "postID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	post, err := h.boardService.GetPost(r.Context(), currentUserID, postID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"post": post,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListPosts — GET /clubs/{clubID}/posts?group_id=N (без group_id — общая доска).
func (h *BoardHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
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

	var groupID *int
	if groupIDStr := r.URL.Query().Get("group_id"); groupIDStr != "" {
		id, err := strconv.Atoi(groupIDStr)
		if err != nil || id <= 0 {
			badRequestResponse(w, r, errors.New("invalid group_id query parameter"))
			return
		}
		groupID = &id
	}

	posts, err := h.boardService.ListPosts(r.Context(), currentUserID, clubID, groupID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"posts": posts,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BoardHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := getIDFromURL(r, "postID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.boardService.DeletePost(r.Context(), currentUserID, postID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := getIDFromURL(r, "postID")
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
		Body string `json:"body"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	comment, err := h.boardService.AddComment(r.Context(), currentUserID, postID, input.Body)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"comment": comment,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BoardHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	postID, err := getIDFromURL(r, "postID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	commentID, err := getIDFromURL(r, "commentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.boardService.DeleteComment(r.Context(), currentUserID, postID, commentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) Vote(w http.ResponseWriter, r *http.Request) {
	postID, err := getIDFromURL(r, "postID")
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
		OptionID int `json:"option_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.OptionID <= 0 {
		badRequestResponse(w, r, errors.New("option_id is required"))
		return
	}

	if err := h.boardService.Vote(r.Context(), currentUserID, postID, input.OptionID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
