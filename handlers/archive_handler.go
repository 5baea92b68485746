package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/moimhub/club-system/middleware"
	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/services"
)

type ArchiveHandler struct {
	archiveService services.ArchiveService
}

func NewArchiveHandler(archiveService services.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{archiveService: archiveService}
}

func (h *ArchiveHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
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
		Kind string `json:"kind"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	kind := models.FolderKind(input.Kind)
	if kind != models.FolderKindFile && kind != models.FolderKindPhoto {
		badRequestResponse(w, r, errors.New("kind must be file or photo"))
		return
	}

	folder, err := h.archiveService.CreateFolder(r.Context(), currentUserID, clubID, input.Name, kind)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"folder": folder,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ArchiveHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
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

	kind := models.FolderKind(r.URL.Query().Get("kind"))
	if kind != models.FolderKindFile && kind != models.FolderKindPhoto {
		badRequestResponse(w, r, errors.New("kind query parameter must be file or photo"))
		return
	}

	folders, err := h.archiveService.ListFolders(r.Context(), currentUserID, clubID, kind)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"folders": folders,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ArchiveHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	folderID, err := getIDFromURL(r, "folderID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.archiveService.DeleteFolder(r.Context(), currentUserID, clubID, folderID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadFile — multipart: поле file плюс опциональные title и folder_id.
func (h *ArchiveHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
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

	file, header, err := r.FormFile("file")
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

	input := services.UploadFileInput{
		ClubID:      clubID,
		Title:       r.FormValue("title"),
		ContentType: contentType,
		Reader:      file,
	}
	if input.Title == "" {
		input.Title = header.Filename
	}
	if folderIDStr := r.FormValue("folder_id"); folderIDStr != "" {
		folderID, err := strconv.Atoi(folderIDStr)
		if err != nil || folderID <= 0 {
			badRequestResponse(w, r, errors.New("invalid folder_id"))
			return
		}
		input.FolderID = &folderID
	}

	archiveFile, err := h.archiveService.UploadFile(r.Context(), currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"file": archiveFile,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ArchiveHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
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

	var folderID *int
	if folderIDStr := r.URL.Query().Get("folder_id"); folderIDStr != "" {
		id, err := strconv.Atoi(folderIDStr)
		if err != nil || id <= 0 {
			badRequestResponse(w, r, errors.New("invalid folder_id query parameter"))
			return
		}
		folderID = &id
	}

	files, err := h.archiveService.ListFiles(r.Context(), currentUserID, clubID, folderID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"files": files,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ArchiveHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := getIDFromURL(r, "fileID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.archiveService.DeleteFile(r.Context(), currentUserID, fileID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
