package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/ammiranda/tree_changelist/models"
	"github.com/ammiranda/tree_changelist/repository"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// serverError records err for the access log and answers 500
func serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func (r *Registry) index(c *gin.Context) {
	var buf bytes.Buffer
	if err := RenderIndex(&buf, r.Prefix(), r.Entities()); err != nil {
		serverError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// static serves the embedded client assets
func (r *Registry) static(c *gin.Context) {
	c.FileFromFS(c.Param("filepath"), staticFileSystem)
}

// changelist renders the list page of the entity
func (r *Registry) changelist(c *gin.Context) {
	admin := adminFrom(c)
	ctx := c.Request.Context()

	page, pageSize := ParsePagination(c.Query("page"), c.Query("pageSize"), admin.Entity().RowsPerPage())
	data, err := admin.Changelist(ctx, page, pageSize)
	if err != nil {
		serverError(c, err)
		return
	}
	data.ActionURL = r.ChangelistPath(admin.Entity().Name)
	data.StaticURL = r.StaticPath(admin.Entity().Name)

	var buf bytes.Buffer
	if err := RenderChangelist(&buf, data); err != nil {
		serverError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// changelistAction handles posts to the list page. Only the request body
// is read. Move requests always redirect back to the list, whatever their
// outcome; other posts render the list.
func (r *Registry) changelistAction(c *gin.Context) {
	var form models.MoveNodeForm
	if err := c.ShouldBindWith(&form, binding.FormPost); err != nil || !form.IsMove() {
		r.changelist(c)
		return
	}

	if _, err := adminFrom(c).Move(c.Request.Context(), form); err != nil {
		serverError(c, err)
		return
	}
	c.Redirect(http.StatusFound, c.Request.URL.Path)
}

// structure returns the structure payload of the whole entity
func (r *Registry) structure(c *gin.Context) {
	structure, err := adminFrom(c).Structure(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}

	data, err := EncodeStructure(structure)
	if err != nil {
		serverError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// createNode creates a new node in the tree
func (r *Registry) createNode(c *gin.Context) {
	var req models.CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := adminFrom(c).CreateNode(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "parent node not found"})
		case errors.Is(err, repository.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, node)
}

// deleteNode removes a node and its subtree
func (r *Registry) deleteNode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid node id"})
		return
	}

	if err := adminFrom(c).DeleteNode(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		serverError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
