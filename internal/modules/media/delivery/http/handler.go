package handler

import (
	"net/http"

	"anoa.com/mediagallery/internal/modules/media/dto"
	media "anoa.com/mediagallery/internal/modules/media/service"
	"anoa.com/mediagallery/pkg/response"
	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	service media.MediaService
}

func NewMediaHandler(service media.MediaService) *MediaHandler {
	return &MediaHandler{service: service}
}

func (h *MediaHandler) GetAllMedia(c *gin.Context) {
	res, err := h.service.GetAllMedia(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *MediaHandler) ToggleLike(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.MediaIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.ToggleLike(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.MediaIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.DeleteMedia(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *MediaHandler) AssignMedia(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.AssignMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.AssignMedia(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *MediaHandler) AllocateMedia(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.AllocateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.AllocateMedia(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// UploadMedia takes a multipart form with one or more "files" parts and either
// a "characterId" field or one "mediaIds" field per file from media.allocate.
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "multipart form is required")
		return
	}

	req := dto.UploadMediaRequest{
		CharacterID: c.PostForm("characterId"),
		MediaIDs:    c.PostFormArray("mediaIds"),
	}

	res, err := h.service.UploadMedia(c.Request.Context(), userID, req, form.File["files"])
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}
