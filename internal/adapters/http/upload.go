package http

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
)

const thumbMaxSide = 320

// allow-list by sniffed content type; the client-supplied filename and
// header are not trusted.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// UploadHandler stores room images on disk and returns an opaque URL the
// client passes back as the image reference of a post. The room engine
// never sees file contents.
type UploadHandler struct {
	Dir      string
	MaxBytes int64
}

func NewUploadHandler(dir string, maxBytes int64) *UploadHandler {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("dir", dir).Msg("create upload dir")
	}
	return &UploadHandler{Dir: dir, MaxBytes: maxBytes}
}

func (h *UploadHandler) Handle(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (20MB limit)"})
		return
	}

	mtype := mimetype.Detect(data)
	if !allowedImageTypes[mtype.String()] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "images only (JPEG, JPG, PNG, GIF)"})
		return
	}

	name := uuid.NewString() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(h.Dir, name), data, 0o644); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("write upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return
	}

	resp := gin.H{"imageUrl": "/images/" + name}
	if thumb, ok := h.writeThumbnail(name, data); ok {
		resp["thumbUrl"] = "/images/" + thumb
	}
	c.JSON(http.StatusOK, resp)
}

// writeThumbnail is best-effort; a message can still reference the
// full-size image when thumbnailing fails.
func (h *UploadHandler) writeThumbnail(name string, data []byte) (string, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("file", name).Msg("thumbnail decode")
		return "", false
	}
	small := resize.Thumbnail(thumbMaxSide, thumbMaxSide, img, resize.Lanczos3)

	thumbName := "thumb_" + name[:len(name)-len(filepath.Ext(name))] + ".jpg"
	out, err := os.Create(filepath.Join(h.Dir, thumbName))
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("thumbnail create")
		return "", false
	}
	defer out.Close()
	if err := jpeg.Encode(out, small, &jpeg.Options{Quality: 80}); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("thumbnail encode")
		return "", false
	}
	return thumbName, true
}
