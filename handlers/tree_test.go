package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ammiranda/tree_changelist/cache"
	"github.com/ammiranda/tree_changelist/config"
	"github.com/ammiranda/tree_changelist/models"
	"github.com/ammiranda/tree_changelist/repository"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	repo   *repository.MemoryRepository
	cache  *cache.MockCache
}

// setupTest registers a "pages" entity seeded with:
//
//	1 Home
//	├── 2 About
//	└── 3 Contact
//	4 Blog
func setupTest(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.Initialize(ctx))
	t.Cleanup(func() {
		if err := repo.Cleanup(ctx); err != nil {
			t.Errorf("Failed to cleanup repository: %v", err)
		}
	})

	home, err := repo.CreateNode(ctx, "Home", nil)
	require.NoError(t, err)
	_, err = repo.CreateNode(ctx, "About", &home)
	require.NoError(t, err)
	_, err = repo.CreateNode(ctx, "Contact", &home)
	require.NoError(t, err)
	_, err = repo.CreateNode(ctx, "Blog", nil)
	require.NoError(t, err)

	mockCache := cache.NewMockCache()
	require.NoError(t, mockCache.Initialize(ctx))

	registry := NewRegistry("/admin", nil)
	require.NoError(t, registry.Register(NewTreeAdmin(
		config.EntityConfig{Name: "pages", Title: "Pages", PerPage: 2},
		repo, mockCache, nil,
	)))

	router := gin.New()
	router.Use(RequestLogger(testLogger()))
	registry.Install(router)

	return &testEnv{router: router, repo: repo, cache: mockCache}
}

func testLogger() *slog.Logger {
	return config.NewLogger(new(bytes.Buffer), config.Development, "")
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func postMove(nodeID, move string) *http.Request {
	form := url.Values{}
	form.Set("_tree_action", "move")
	form.Set("node_id", nodeID)
	form.Set("move", move)
	req := httptest.NewRequest(http.MethodPost, "/admin/pages/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (e *testEnv) order(t *testing.T) []string {
	nodes, err := e.repo.ListNodes(context.Background())
	require.NoError(t, err)
	labels := make([]string, 0, len(nodes))
	for _, n := range nodes {
		labels = append(labels, n.Label)
	}
	return labels
}

func TestChangelistPage(t *testing.T) {
	env := setupTest(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/pages/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	// Test first page rows and actions column
	assert.Contains(t, body, "<th>Home</th>")
	assert.Contains(t, body, "<th>About</th>")
	assert.NotContains(t, body, "<th>Contact</th>")
	assert.Contains(t, body, `<div class="tree_actions" id="tree_actions_1"></div>`)
	assert.Contains(t, body, `<button type="button" value="2" class="tree_actions_right">right</button>`)

	// Test the hidden move form
	assert.Contains(t, body, `id="tree_changelist_form"`)
	assert.Contains(t, body, `action="/admin/pages/"`)

	// Test the structure covers the whole entity
	assert.Contains(t, body, `"4":{"c":[],"l":0,"r":true}`)
	assert.Contains(t, body, `"1":{"c":[2,3],"l":0,"r":true}`)
	assert.Contains(t, body, "page 1 of 2")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	// Test second page
	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/pages/?page=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<th>Contact</th>")
	assert.Contains(t, w.Body.String(), "<th>Blog</th>")
	assert.NotContains(t, w.Body.String(), "<th>Home</th>")
}

func TestChangelistUsesCache(t *testing.T) {
	env := setupTest(t)

	env.do(httptest.NewRequest(http.MethodGet, "/admin/pages/", nil))
	env.do(httptest.NewRequest(http.MethodGet, "/admin/pages/", nil))
	assert.Equal(t, 1, env.cache.HitCount())

	// Test an applied move invalidates the listing
	w := env.do(postMove("3", "1"))
	require.Equal(t, http.StatusFound, w.Code)
	_, _, invalidate, _, _ := env.cache.GetCallCounts()
	assert.Equal(t, 1, invalidate)

	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/pages/structure.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"1":{"c":[3,2],"l":0,"r":true}`)
}

func TestMoveRedirects(t *testing.T) {
	tests := []struct {
		name   string
		nodeID string
		move   string
		order  []string
	}{
		{"up", "3", "1", []string{"Home", "Contact", "About", "Blog"}},
		{"down", "2", "2", []string{"Home", "Contact", "About", "Blog"}},
		{"left", "3", "3", []string{"Home", "About", "Contact", "Blog"}},
		{"right", "4", "4", []string{"Home", "About", "Contact", "Blog"}},
		{"up first sibling", "2", "1", []string{"Home", "About", "Contact", "Blog"}},
		{"left root", "1", "3", []string{"Home", "About", "Contact", "Blog"}},
		{"invalid move code", "3", "5", []string{"Home", "About", "Contact", "Blog"}},
		{"non numeric move", "3", "x", []string{"Home", "About", "Contact", "Blog"}},
		{"unknown node", "999", "1", []string{"Home", "About", "Contact", "Blog"}},
		{"non numeric node", "abc", "1", []string{"Home", "About", "Contact", "Blog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTest(t)

			w := env.do(postMove(tt.nodeID, tt.move))
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/admin/pages/", w.Header().Get("Location"))
			assert.Equal(t, tt.order, env.order(t))
		})
	}
}

func TestMoveChangesLevels(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	// Test left outdents Contact to a root after Home
	env.do(postMove("3", "3"))
	node, err := env.repo.GetNode(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, node.ParentID)
	assert.Equal(t, 0, node.Level)

	// Test right indents Blog under Contact
	env.do(postMove("4", "4"))
	node, err = env.repo.GetNode(ctx, 4)
	require.NoError(t, err)
	require.NotNil(t, node.ParentID)
	assert.Equal(t, int64(3), *node.ParentID)
	assert.Equal(t, 1, node.Level)
}

func TestPostWithoutMoveRendersList(t *testing.T) {
	env := setupTest(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/pages/", strings.NewReader("_tree_action=other"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<th>Home</th>")
}

func TestMoveReadsBodyOnly(t *testing.T) {
	env := setupTest(t)

	// Test move fields in the query string are not a move request
	req := httptest.NewRequest(http.MethodPost, "/admin/pages/?_tree_action=move&node_id=3&move=1", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, []string{"Home", "About", "Contact", "Blog"}, env.order(t))

	// Test query values do not override the posted fields
	req = httptest.NewRequest(http.MethodPost, "/admin/pages/?node_id=2", strings.NewReader("_tree_action=move&node_id=3&move=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, []string{"Home", "Contact", "About", "Blog"}, env.order(t))
}

func TestStructureJSON(t *testing.T) {
	env := setupTest(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/pages/structure.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"1":{"c":[2,3],"l":0,"r":true},"2":{"c":[],"l":1},"3":{"c":[],"l":1},"4":{"c":[],"l":0,"r":true}}`,
		w.Body.String(),
	)
}

func TestCreateAndDeleteNode(t *testing.T) {
	env := setupTest(t)

	// Test creating a child
	w := env.do(jsonRequest(http.MethodPost, "/admin/pages/nodes", `{"label":"Team","parentId":2}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Node
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Team", created.Label)
	assert.Equal(t, 2, created.Level)
	assert.Equal(t, []string{"Home", "About", "Team", "Contact", "Blog"}, env.order(t))

	// Test validation and missing parent
	w = env.do(jsonRequest(http.MethodPost, "/admin/pages/nodes", `{"label":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(jsonRequest(http.MethodPost, "/admin/pages/nodes", `{"label":"x","parentId":404}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(jsonRequest(http.MethodPost, "/admin/pages/nodes", `{"label":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test deleting a subtree
	w = env.do(httptest.NewRequest(http.MethodDelete, "/admin/pages/nodes/2", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"Home", "Contact", "Blog"}, env.order(t))

	w = env.do(httptest.NewRequest(http.MethodDelete, "/admin/pages/nodes/2", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(httptest.NewRequest(http.MethodDelete, "/admin/pages/nodes/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUnknownEntity(t *testing.T) {
	env := setupTest(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/menus/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"entity not found"}`, w.Body.String())

	w = env.do(postMove("1", "1"))
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestIndexAndStatic(t *testing.T) {
	env := setupTest(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/admin/pages/"`)

	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/pages/static/treechangelist.js", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TreeChangelist.setupStructure")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry("/admin", nil)
	admin := NewTreeAdmin(config.EntityConfig{Name: "pages"}, repository.NewMemoryRepository(), nil, nil)

	require.NoError(t, registry.Register(admin))
	assert.Error(t, registry.Register(admin))
	assert.Error(t, registry.Register(NewTreeAdmin(config.EntityConfig{}, repository.NewMemoryRepository(), nil, nil)))

	found, ok := registry.Lookup("pages")
	assert.True(t, ok)
	assert.Same(t, admin, found)
	_, ok = registry.Lookup("menus")
	assert.False(t, ok)
}

func TestActionsColumn(t *testing.T) {
	html := string(ActionsColumn(42))
	assert.True(t, strings.HasPrefix(html, `<div class="tree_actions" id="tree_actions_42"></div>`))
	for _, dir := range []string{"up", "down", "left", "right"} {
		assert.Contains(t, html, `value="42" class="tree_actions_`+dir+`"`)
	}

	assert.Equal(t,
		`<div class="tree_actions" id="tree_actions_9007199254740993"></div>`+
			`<button type="button" value="9007199254740993" class="tree_actions_up">Up</button>`+
			`<button type="button" value="9007199254740993" class="tree_actions_down">down</button>`+
			`<button type="button" value="9007199254740993" class="tree_actions_left">left</button>`+
			`<button type="button" value="9007199254740993" class="tree_actions_right">right</button>`,
		string(ActionsColumn(9007199254740993)),
	)
}

func TestRegistryPaths(t *testing.T) {
	registry := NewRegistry("/admin/", nil)
	assert.Equal(t, "/admin", registry.Prefix())
	assert.Equal(t, "/admin/pages/", registry.ChangelistPath("pages"))
	assert.Equal(t, "/admin/pages/static", registry.StaticPath("pages"))

	root := NewRegistry("/", nil)
	assert.Equal(t, "", root.Prefix())
	assert.Equal(t, "/pages/", root.ChangelistPath("pages"))
}

func TestEncodeStructureEscapesHTML(t *testing.T) {
	data, err := EncodeStructure(models.Structure{1: {Children: []int64{}}})
	require.NoError(t, err)
	assert.Equal(t, `{"1":{"c":[]}}`, string(data))

	// keys and values are numeric, so escaping is checked on the encoder directly
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	require.NoError(t, enc.Encode("</script>&"))
	assert.NotContains(t, buf.String(), "<")
	assert.NotContains(t, buf.String(), "&")
}

func TestParsePagination(t *testing.T) {
	page, size := ParsePagination("", "", 25)
	assert.Equal(t, 1, page)
	assert.Equal(t, 25, size)

	page, size = ParsePagination("3", "10", 25)
	assert.Equal(t, 3, page)
	assert.Equal(t, 10, size)

	page, size = ParsePagination("-1", "1000", 25)
	assert.Equal(t, 1, page)
	assert.Equal(t, MaxPageSize, size)

	p := paginate(5, 9, 2)
	assert.Equal(t, 3, p.Page)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)
}
