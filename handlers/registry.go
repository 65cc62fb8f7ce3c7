package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ammiranda/tree_changelist/config"

	"github.com/gin-gonic/gin"
)

const adminKey = "tree_admin"

// Registry maps entity names to their admins. Entities are registered
// explicitly at startup and mounted under a common path prefix.
type Registry struct {
	prefix string
	admins map[string]*TreeAdmin
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry mounted at prefix
func NewRegistry(prefix string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		prefix: "/" + strings.Trim(prefix, "/"),
		admins: make(map[string]*TreeAdmin),
		logger: logger,
	}
}

// Register adds an admin. Registering the same entity twice is an error.
func (r *Registry) Register(admin *TreeAdmin) error {
	name := admin.Entity().Name
	if name == "" {
		return fmt.Errorf("entity name is required")
	}
	if _, exists := r.admins[name]; exists {
		return fmt.Errorf("entity %q is already registered", name)
	}
	r.admins[name] = admin
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the admin registered for entity
func (r *Registry) Lookup(entity string) (*TreeAdmin, bool) {
	admin, ok := r.admins[entity]
	return admin, ok
}

// Entities returns the registered entities in registration order
func (r *Registry) Entities() []config.EntityConfig {
	entities := make([]config.EntityConfig, 0, len(r.order))
	for _, name := range r.order {
		entities = append(entities, r.admins[name].Entity())
	}
	return entities
}

// Prefix returns the path every route is mounted under, without a trailing slash
func (r *Registry) Prefix() string {
	if r.prefix == "/" {
		return ""
	}
	return r.prefix
}

// ChangelistPath returns the changelist URL of entity
func (r *Registry) ChangelistPath(entity string) string {
	return r.Prefix() + "/" + entity + "/"
}

// StaticPath returns the URL the client assets of entity are served from
func (r *Registry) StaticPath(entity string) string {
	return r.Prefix() + "/" + entity + "/static"
}

// Install mounts the admin routes on router
func (r *Registry) Install(router gin.IRouter) {
	group := router.Group(r.Prefix())
	group.GET("/", r.index)

	entity := group.Group("/:entity", r.resolve)
	{
		entity.GET("/", r.changelist)
		entity.POST("/", r.changelistAction)
		entity.GET("/structure.json", r.structure)
		entity.POST("/nodes", r.createNode)
		entity.DELETE("/nodes/:id", r.deleteNode)
		entity.GET("/static/*filepath", r.static)
	}
}

// resolve loads the admin named by the :entity path parameter
func (r *Registry) resolve(c *gin.Context) {
	admin, ok := r.Lookup(c.Param("entity"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return
	}
	c.Set(adminKey, admin)
	c.Next()
}

func adminFrom(c *gin.Context) *TreeAdmin {
	return c.MustGet(adminKey).(*TreeAdmin)
}
