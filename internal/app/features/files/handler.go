// internal/app/features/files/handler.go
package files

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dalemusser/filesmanager/internal/app/features/errors"
	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/app/system/authn"
	"github.com/dalemusser/filesmanager/internal/app/system/jsonutil"
	"github.com/dalemusser/filesmanager/internal/app/system/normalize"
	"github.com/dalemusser/filesmanager/internal/app/system/timeouts"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxUploadSize bounds the JSON body of POST /files, base64 payload included.
const maxUploadSize = 64 << 20

// Handler serves the /files endpoints.
type Handler struct {
	mgr     *Manager
	maxBody int64
	errLog  *errors.ErrorLogger
	logger  *zap.Logger
}

// NewHandler creates a files Handler.
func NewHandler(mgr *Manager, errLog *errors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{mgr: mgr, maxBody: maxUploadSize, errLog: errLog, logger: logger}
}

// View is the JSON form of a FileNode. ParentID is "0" for root nodes and
// the content location is never exposed.
type View struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsPublic bool   `json:"isPublic"`
	ParentID any    `json:"parentId"`
}

// ToView converts a node for output.
func ToView(n *models.FileNode) View {
	v := View{
		ID:       n.ID.Hex(),
		UserID:   n.UserID.Hex(),
		Name:     n.Name,
		Type:     string(n.Type),
		IsPublic: n.IsPublic,
		ParentID: 0,
	}
	if n.ParentID != nil {
		v.ParentID = n.ParentID.Hex()
	}
	return v
}

type createRequest struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	ParentID json.RawMessage `json:"parentId"`
	IsPublic bool            `json:"isPublic"`
	Data     string          `json:"data"`
}

// parentValue flattens a parentId given as a number, a string or null.
func parentValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Transfer())
	defer cancel()

	var req createRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	err := jsonutil.Decode(r, &req)
	switch {
	case err == nil || err == io.EOF:
	case jsonutil.TooLarge(err):
		// Oversized uploads still answer Unauthorized to anonymous callers.
		if _, authErr := h.mgr.auth.Resolve(ctx, authn.TokenFrom(r)); authErr != nil {
			h.errLog.Respond(w, r, "create file failed", authErr)
			return
		}
		h.logger.Debug("create: body too large", zap.Int64("limit", h.maxBody))
		h.errLog.Respond(w, r, "create file failed", apierr.ErrInvalidData)
		return
	default:
		// An unreadable body is treated as an empty one, so the token is
		// still checked first and the first missing field is reported.
		h.logger.Debug("create: undecodable body", zap.Error(err))
		req = createRequest{}
	}

	node, err := h.mgr.Create(ctx, authn.TokenFrom(r), CreateInput{
		Name:     req.Name,
		Type:     req.Type,
		ParentID: parentValue(req.ParentID),
		IsPublic: req.IsPublic,
		Data:     req.Data,
	})
	if err != nil {
		h.errLog.Respond(w, r, "create file failed", err)
		return
	}
	jsonutil.Created(w, ToView(node))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	node, err := h.mgr.Get(ctx, authn.TokenFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.errLog.Respond(w, r, "get file failed", err)
		return
	}
	jsonutil.OK(w, ToView(node))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	q := r.URL.Query()
	nodes, err := h.mgr.List(ctx, authn.TokenFrom(r), q.Get("parentId"), normalize.Page(q.Get("page")))
	if err != nil {
		h.errLog.Respond(w, r, "list files failed", err)
		return
	}

	views := make([]View, 0, len(nodes))
	for i := range nodes {
		views = append(views, ToView(&nodes[i]))
	}
	jsonutil.OK(w, views)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, true)
}

func (h *Handler) unpublish(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, false)
}

func (h *Handler) setVisibility(w http.ResponseWriter, r *http.Request, public bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	node, err := h.mgr.SetVisibility(ctx, authn.TokenFrom(r), chi.URLParam(r, "id"), public)
	if err != nil {
		h.errLog.Respond(w, r, "set visibility failed", err)
		return
	}
	jsonutil.OK(w, ToView(node))
}

func (h *Handler) data(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Transfer())
	defer cancel()

	content, err := h.mgr.Read(ctx, chi.URLParam(r, "id"), authn.TokenFrom(r), r.URL.Query().Get("size"))
	if err != nil {
		h.errLog.Respond(w, r, "read file failed", err)
		return
	}
	defer content.Body.Close()

	w.Header().Set("Content-Type", content.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Body); err != nil {
		h.logger.Warn("failed to stream file",
			zap.String("file_id", content.Node.ID.Hex()),
			zap.Error(err))
	}
}
