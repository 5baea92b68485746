package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/moimhub/club-system/chat"
	"github.com/moimhub/club-system/middleware"
	"github.com/moimhub/club-system/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// History — GET /clubs/{clubID}/messages?group_id=N. REST-вариант истории
// для первичной отрисовки без websocket.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
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

	channel := chat.ChannelID{ClubID: clubID}
	if groupIDStr := r.URL.Query().Get("group_id"); groupIDStr != "" {
		groupID, err := strconv.Atoi(groupIDStr)
		if err != nil || groupID <= 0 {
			badRequestResponse(w, r, errors.New("invalid group_id query parameter"))
			return
		}
		channel.GroupID = &groupID
	}

	messages, err := h.chatService.History(r.Context(), channel, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"messages": messages,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteMessage — DELETE /messages/{messageID}: автор или manager клуба.
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := getIDFromURL(r, "messageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.chatService.DeleteMessage(r.Context(), currentUserID, messageID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
