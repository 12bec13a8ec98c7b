package httpapi

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

type trashBody struct {
	AccessToken string `json:"accessToken"`
	FileID      string `json:"fileId"`
}

func (h *Handler) listFiles(c *gin.Context) {
	files, err := h.files.List(c.Request.Context(), c.Query("accessToken"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handler) listFilesByType(c *gin.Context) {
	files, err := h.files.ListByType(c.Request.Context(), c.Query("accessToken"), c.Query("mimeType"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

// download streams the file, or hands out a presigned URL when staging is
// configured.
func (h *Handler) download(c *gin.Context) {
	ctx := c.Request.Context()
	accessToken, fileID := c.Query("accessToken"), c.Query("fileId")

	if h.files.StagingEnabled() {
		u, err := h.files.StageDownload(ctx, accessToken, fileID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": u})
		return
	}

	d, err := h.files.Download(ctx, accessToken, fileID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer d.Body.Close()

	contentType := d.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := d.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, contentType, d.Body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}),
	})
}

func (h *Handler) upload(c *gin.Context) {
	accessToken := c.PostForm("accessToken")
	fh, err := c.FormFile("file")
	if err != nil || accessToken == "" {
		respondCode(c, http.StatusBadRequest, "MISSING_PARAMETER", "accessToken and file are required")
		return
	}

	src, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer src.Close()

	f, err := h.files.Upload(c.Request.Context(), accessToken, fh.Filename, fh.Header.Get("Content-Type"), c.PostForm("parentId"), src)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *Handler) trash(c *gin.Context) {
	var b trashBody
	if !bind(c, &b) {
		return
	}

	if err := h.files.Trash(c.Request.Context(), b.AccessToken, b.FileID); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "file moved to trash")
}

func (h *Handler) driveInfo(c *gin.Context) {
	about, err := h.files.DriveInfo(c.Request.Context(), c.Query("accessToken"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, about)
}

func (h *Handler) recentFiles(c *gin.Context) {
	files, err := h.files.Recent(c.Request.Context(), c.Query("accessToken"))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(files) == 0 {
		respondMessage(c, http.StatusOK, "no recent files")
		return
	}
	c.JSON(http.StatusOK, files)
}
