package lambda

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/ammiranda/tree_changelist/handlers"
	"github.com/ammiranda/tree_changelist/models"
	"github.com/ammiranda/tree_changelist/repository"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
)

// Handler serves the registered changelists behind API Gateway
type Handler struct {
	registry *handlers.Registry
	logger   *slog.Logger
}

// NewHandler creates a new Handler over the given registry
func NewHandler(registry *handlers.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		logger:   logger,
	}
}

// Handle processes API Gateway events
func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID
	if requestID == "" {
		requestID = handlers.NewRequestID()
	}
	logger := h.logger.With("request_id", requestID)
	ctx = handlers.WithLogger(ctx, logger)

	response := h.route(ctx, request)
	if response.Headers == nil {
		response.Headers = map[string]string{}
	}
	response.Headers[handlers.RequestIDHeader] = requestID

	attrs := []any{"method", request.HTTPMethod, "path", request.Path, "status", response.StatusCode}
	if response.StatusCode >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Info("request completed", attrs...)
	}
	return response, nil
}

func (h *Handler) route(ctx context.Context, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	rest, ok := strings.CutPrefix(request.Path, h.registry.Prefix()+"/")
	if !ok {
		return notFound("not found")
	}
	if rest == "" && request.HTTPMethod == http.MethodGet {
		return h.handleIndex()
	}

	entity, sub, _ := strings.Cut(rest, "/")
	admin, found := h.registry.Lookup(entity)
	if !found {
		return notFound("entity not found")
	}

	switch {
	case request.HTTPMethod == http.MethodGet && sub == "":
		return h.handleChangelist(ctx, admin, request)
	case request.HTTPMethod == http.MethodPost && sub == "":
		return h.handleAction(ctx, admin, request)
	case request.HTTPMethod == http.MethodGet && sub == "structure.json":
		return h.handleStructure(ctx, admin)
	case request.HTTPMethod == http.MethodPost && sub == "nodes":
		return h.handleCreateNode(ctx, admin, request)
	case request.HTTPMethod == http.MethodGet && strings.HasPrefix(sub, "static/"):
		return handleStatic(strings.TrimPrefix(sub, "static/"))
	case request.HTTPMethod == http.MethodDelete && strings.HasPrefix(sub, "nodes/"):
		return h.handleDeleteNode(ctx, admin, strings.TrimPrefix(sub, "nodes/"))
	default:
		return notFound("not found")
	}
}

func (h *Handler) handleIndex() events.APIGatewayProxyResponse {
	var buf bytes.Buffer
	if err := handlers.RenderIndex(&buf, h.registry.Prefix(), h.registry.Entities()); err != nil {
		return h.serverError(err)
	}
	return htmlResponse(buf.String())
}

func (h *Handler) handleChangelist(ctx context.Context, admin *handlers.TreeAdmin, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	page, pageSize := handlers.ParsePagination(
		request.QueryStringParameters["page"],
		request.QueryStringParameters["pageSize"],
		admin.Entity().RowsPerPage(),
	)
	data, err := admin.Changelist(ctx, page, pageSize)
	if err != nil {
		return h.serverError(err)
	}
	data.ActionURL = h.registry.ChangelistPath(admin.Entity().Name)
	data.StaticURL = h.registry.StaticPath(admin.Entity().Name)

	var buf bytes.Buffer
	if err := handlers.RenderChangelist(&buf, data); err != nil {
		return h.serverError(err)
	}
	return htmlResponse(buf.String())
}

// handleAction redirects every move request back to the list
func (h *Handler) handleAction(ctx context.Context, admin *handlers.TreeAdmin, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	form, err := parseMoveForm(request)
	if err != nil || !form.IsMove() {
		return h.handleChangelist(ctx, admin, request)
	}

	if _, err := admin.Move(ctx, form); err != nil {
		return h.serverError(err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": request.Path},
	}
}

// handleStatic serves the embedded client assets
func handleStatic(name string) events.APIGatewayProxyResponse {
	data, err := fs.ReadFile(handlers.StaticFiles(), name)
	if err != nil {
		return notFound("not found")
	}
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": contentType},
		Body:       string(data),
	}
}

func (h *Handler) handleStructure(ctx context.Context, admin *handlers.TreeAdmin) events.APIGatewayProxyResponse {
	structure, err := admin.Structure(ctx)
	if err != nil {
		return h.serverError(err)
	}
	data, err := handlers.EncodeStructure(structure)
	if err != nil {
		return h.serverError(err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
		Body:       string(data),
	}
}

func (h *Handler) handleCreateNode(ctx context.Context, admin *handlers.TreeAdmin, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body, err := requestBody(request)
	if err != nil {
		return jsonError(http.StatusBadRequest, err.Error())
	}

	var req models.CreateNodeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return jsonError(http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
	}

	node, err := admin.CreateNode(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNodeNotFound):
			return jsonError(http.StatusNotFound, "parent node not found")
		case errors.Is(err, repository.ErrInvalidInput):
			return jsonError(http.StatusBadRequest, err.Error())
		default:
			return h.serverError(err)
		}
	}

	return jsonResponse(http.StatusCreated, node)
}

func (h *Handler) handleDeleteNode(ctx context.Context, admin *handlers.TreeAdmin, rawID string) events.APIGatewayProxyResponse {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return jsonError(http.StatusBadRequest, "invalid node id")
	}

	if err := admin.DeleteNode(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return jsonError(http.StatusNotFound, "node not found")
		}
		return h.serverError(err)
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
}

func (h *Handler) serverError(err error) events.APIGatewayProxyResponse {
	h.logger.Error("handler error", "error", err)
	return jsonError(http.StatusInternalServerError, "internal server error")
}

// parseMoveForm decodes the url-encoded body posted by the move buttons
func parseMoveForm(request events.APIGatewayProxyRequest) (models.MoveNodeForm, error) {
	body, err := requestBody(request)
	if err != nil {
		return models.MoveNodeForm{}, err
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return models.MoveNodeForm{}, fmt.Errorf("invalid form body: %w", err)
	}
	return models.MoveNodeForm{
		Action: values.Get("_tree_action"),
		NodeID: values.Get("node_id"),
		Move:   values.Get("move"),
	}, nil
}

func requestBody(request events.APIGatewayProxyRequest) ([]byte, error) {
	if !request.IsBase64Encoded {
		return []byte(request.Body), nil
	}
	body, err := base64.StdEncoding.DecodeString(request.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 body: %w", err)
	}
	return body, nil
}

func htmlResponse(body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
		Body:       body,
	}
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return jsonError(http.StatusInternalServerError, fmt.Sprintf("Failed to marshal response: %v", err))
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func jsonError(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func notFound(message string) events.APIGatewayProxyResponse {
	return jsonError(http.StatusNotFound, message)
}
