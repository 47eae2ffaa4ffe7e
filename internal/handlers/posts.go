package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"artbooru/api/internal/models"
	"artbooru/api/internal/repository"
	"artbooru/api/internal/service"
)

// The gateway in front of this service authenticates the caller and
// forwards the resolved account id in this header.
const authorIDHeader = "X-Author-Id"

type createPostResponse struct {
	PostID         string                 `json:"postId"`
	AuthorUsername string                 `json:"authorUsername"`
	DuplicatePosts []duplicatePostPayload `json:"duplicatePosts,omitempty"`
}

type duplicatePostPayload struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	ImageURLs   []string `json:"imageUrls"`
}

func (h HandlerSet) CreatePost(c *gin.Context) {
	authorID := c.GetHeader(authorIDHeader)
	if authorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "author_required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart_form_required"})
		return
	}

	files, err := readUploadFiles(form.File["pictures"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file"})
		return
	}

	draft := models.PostDraft{
		Description:      c.PostForm("description"),
		Files:            files,
		Tags:             splitLabels(c.PostFormArray("tags")),
		Artists:          splitLabels(c.PostFormArray("artists")),
		NSFW:             parseBool(c.PostForm("isNsfw")),
		SourceLink:       c.PostForm("sourceLink"),
		UploadID:         c.PostForm("uploadId"),
		IgnoreDuplicates: parseBool(c.PostForm("ignoreDuplicates")),
	}

	result, err := h.postService.CreatePost(c.Request.Context(), draft, authorID)
	if err != nil {
		h.renderCreateError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createPostResponse{
		PostID:         result.PostID,
		AuthorUsername: result.AuthorUsername,
		DuplicatePosts: toDuplicatePayload(result.DuplicatePosts),
	})
}

func (h HandlerSet) renderCreateError(c *gin.Context, err error) {
	var dup *service.DuplicateError
	if errors.As(err, &dup) {
		c.JSON(http.StatusConflict, gin.H{
			"error":          "duplicate_posts_detected",
			"duplicatePosts": toDuplicatePayload(dup.Matches),
		})
		return
	}

	var input *service.InputError
	if errors.As(err, &input) {
		c.JSON(http.StatusBadRequest, gin.H{"error": input.Reason})
		return
	}

	// Infrastructure failures stay opaque to the caller; the cause is in
	// the logs.
	h.log.Error().Err(err).Msg("create post failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "post_creation_failed"})
}

type checkDuplicatesRequest struct {
	Fingerprints []string `json:"fingerprints" binding:"required"`
}

func (h HandlerSet) CheckDuplicates(c *gin.Context) {
	var req checkDuplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fingerprints_required"})
		return
	}

	matches, err := h.postService.CheckDuplicates(c.Request.Context(), req.Fingerprints)
	if err != nil {
		h.log.Error().Err(err).Msg("duplicate check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "duplicate_check_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"duplicatePosts": toDuplicatePayload(matches)})
}

func (h HandlerSet) DeletePost(c *gin.Context) {
	authorID := c.GetHeader(authorIDHeader)
	if authorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "author_required"})
		return
	}

	postID := c.Param("postId")
	if err := h.postService.DeletePost(c.Request.Context(), postID, authorID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		h.log.Error().Err(err).Str("post_id", postID).Msg("delete post failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post_deletion_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": postID})
}

func readUploadFiles(headers []*multipart.FileHeader) ([]models.UploadFile, error) {
	files := make([]models.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, models.UploadFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// splitLabels accepts both repeated form fields and comma-separated
// values in a single field.
func splitLabels(values []string) []string {
	var labels []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				labels = append(labels, part)
			}
		}
	}
	return labels
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

func toDuplicatePayload(matches []models.DuplicatePost) []duplicatePostPayload {
	if len(matches) == 0 {
		return nil
	}
	payload := make([]duplicatePostPayload, len(matches))
	for i, match := range matches {
		payload[i] = duplicatePostPayload{
			ID:          match.ID,
			Description: match.Description,
			ImageURLs:   match.ImageURLs,
		}
	}
	return payload
}
