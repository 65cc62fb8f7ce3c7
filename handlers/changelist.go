package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/ammiranda/tree_changelist/config"
	"github.com/ammiranda/tree_changelist/models"

	"github.com/goccy/go-json"
)

// MaxPageSize caps the pageSize query parameter
const MaxPageSize = 100

// Pagination describes the rows shown on one changelist page
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// ChangelistRow is one listed node
type ChangelistRow struct {
	Node    *models.Node
	Actions template.HTML
}

// ChangelistPage is the data rendered by the changelist template
type ChangelistPage struct {
	Entity     config.EntityConfig
	Rows       []ChangelistRow
	Structure  template.JS
	Pagination Pagination
	ActionURL  string
	StaticURL  string
}

// ParsePagination reads the page and pageSize query values. Missing or
// malformed values fall back to page 1 and defaultSize.
func ParsePagination(pageRaw, sizeRaw string, defaultSize int) (page, size int) {
	page, err := strconv.Atoi(pageRaw)
	if err != nil || page < 1 {
		page = 1
	}
	size, err = strconv.Atoi(sizeRaw)
	if err != nil || size < 1 {
		size = defaultSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Changelist builds the given page of the entity's changelist. The
// structure payload always covers the whole entity so the script can
// resolve children listed on other pages.
func (a *TreeAdmin) Changelist(ctx context.Context, page, pageSize int) (*ChangelistPage, error) {
	nodes, err := a.LoadNodes(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := EncodeStructure(a.buildStructure(ctx, nodes))
	if err != nil {
		return nil, err
	}

	pagination := paginate(len(nodes), page, pageSize)
	start := (pagination.Page - 1) * pagination.PageSize
	end := start + pagination.PageSize
	if start > len(nodes) {
		start = len(nodes)
	}
	if end > len(nodes) {
		end = len(nodes)
	}

	rows := make([]ChangelistRow, 0, end-start)
	for _, n := range nodes[start:end] {
		rows = append(rows, ChangelistRow{Node: n, Actions: ActionsColumn(n.ID)})
	}

	return &ChangelistPage{
		Entity:     a.entity,
		Rows:       rows,
		Structure:  template.JS(payload),
		Pagination: pagination,
	}, nil
}

// paginate clamps page into the available range
func paginate(total, page, pageSize int) Pagination {
	if pageSize < 1 {
		pageSize = config.DefaultPerPage
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(total),
		TotalPages: int64(totalPages),
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// EncodeStructure serializes the structure for embedding in a script
// element. <, > and & are escaped as \u003c, \u003e and \u0026.
func EncodeStructure(structure models.Structure) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(structure); err != nil {
		return nil, fmt.Errorf("failed to encode structure: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ActionsColumn renders the move buttons of one changelist row. The id is
// the only interpolated value and a decimal integer needs no escaping.
func ActionsColumn(id int64) template.HTML {
	return template.HTML(fmt.Sprintf(actionsFormat, id))
}

const actionsFormat = `<div class="tree_actions" id="tree_actions_%[1]d"></div>` +
	`<button type="button" value="%[1]d" class="tree_actions_up">Up</button>` +
	`<button type="button" value="%[1]d" class="tree_actions_down">down</button>` +
	`<button type="button" value="%[1]d" class="tree_actions_left">left</button>` +
	`<button type="button" value="%[1]d" class="tree_actions_right">right</button>`

// RenderChangelist writes the changelist page as HTML
func RenderChangelist(w io.Writer, page *ChangelistPage) error {
	return pageTemplates.ExecuteTemplate(w, "tree_change_list.html", page)
}

// RenderIndex writes the list of registered entities as HTML
func RenderIndex(w io.Writer, prefix string, entities []config.EntityConfig) error {
	return pageTemplates.ExecuteTemplate(w, "index.html", struct {
		Prefix   string
		Entities []config.EntityConfig
	}{prefix, entities})
}
