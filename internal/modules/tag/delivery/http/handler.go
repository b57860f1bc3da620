package handler

import (
	"net/http"

	"anoa.com/mediagallery/internal/modules/tag/dto"
	tag "anoa.com/mediagallery/internal/modules/tag/service"
	"anoa.com/mediagallery/pkg/response"
	"anoa.com/mediagallery/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TagHandler struct {
	service tag.TagService
}

func NewTagHandler(service tag.TagService) *TagHandler {
	return &TagHandler{service: service}
}

func bindTagID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.TagIDRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return uuid.Nil, false
	}

	id, err := validator.ParseID("tagId", req.TagID)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *TagHandler) GetAllTags(c *gin.Context) {
	res, err := h.service.GetAllTags(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TagHandler) GetTag(c *gin.Context) {
	id, ok := bindTagID(c)
	if !ok {
		return
	}

	res, err := h.service.GetTag(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TagHandler) GetTagMedia(c *gin.Context) {
	id, ok := bindTagID(c)
	if !ok {
		return
	}

	res, err := h.service.GetTagMedia(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TagHandler) CreateTag(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.CreateTag(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *TagHandler) UpdateTag(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.UpdateTag(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TagHandler) DeleteTag(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.TagIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.DeleteTag(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TagHandler) SetCover(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.TagMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.SetCover(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
