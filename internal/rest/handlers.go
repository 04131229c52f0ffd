package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine"
	"github.com/cbir-io/retrieval/internal/properties"
	"github.com/cbir-io/retrieval/internal/registry"
	"github.com/cbir-io/retrieval/internal/retrieval"
)

// getByStorage serves GET /api/storages/:storage/images/:id.
func (s *Server) getByStorage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	props, err := s.svc.ShardProperties(c.Request.Context(), c.Param("storage"), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}

// getImage serves GET /api/images/:id, the cross-shard lookup.
func (s *Server) getImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	props, err := s.svc.FindProperties(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}

// listImages serves GET /api/images.
func (s *Server) listImages(c *gin.Context) {
	all, err := s.svc.ListAllProperties(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if all == nil {
		all = []*properties.Map{}
	}
	c.JSON(http.StatusOK, all)
}

// createImage serves POST /api/images. The request is multipart: form
// fields id, storage (optional), keys, values, async, plus the image
// bytes under "imageBytes".
func (s *Server) createImage(c *gin.Context) {
	req := retrieval.IngestRequest{
		Shard:  c.PostForm("storage"),
		Keys:   c.PostForm("keys"),
		Values: c.PostForm("values"),
	}

	switch raw := c.PostForm("id"); raw {
	case "":
		req.ID = engine.AutoID
	default:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		req.ID = id
	}

	if raw := c.PostForm("async"); raw != "" {
		async, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "async must be a boolean"})
			return
		}
		req.Async = async
	}

	file, _, err := c.Request.FormFile("imageBytes")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageBytes file is required"})
		return
	}
	defer file.Close()
	req.Payload, err = io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading imageBytes failed"})
		return
	}

	props, err := s.svc.Ingest(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}

// deleteImage serves DELETE /api/storages/:storage/images/:id.
func (s *Server) deleteImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := s.svc.Delete(c.Request.Context(), c.Param("storage"), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// createStorage serves POST /api/storages.
func (s *Server) createStorage(c *gin.Context) {
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := s.svc.CreateShard(c.Request.Context(), body.Name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": body.Name})
}

// listStorages serves GET /api/storages.
func (s *Server) listStorages(c *gin.Context) {
	infos, err := s.svc.ListShards(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, infos)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return 0, false
	}
	return id, true
}

// fail renders a gateway error as its HTTP status.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrShardNotFound),
		errors.Is(err, retrieval.ErrImageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, retrieval.ErrDuplicateImage),
		errors.Is(err, registry.ErrShardExists):
		status = http.StatusConflict
	case errors.Is(err, retrieval.ErrInvalidImage),
		errors.Is(err, properties.ErrMalformed):
		status = http.StatusBadRequest
	case errors.Is(err, registry.ErrNoShardsAvailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
