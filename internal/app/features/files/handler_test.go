package files

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/dalemusser/filesmanager/internal/app/features/errors"
	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func newRouter(f *fixture) chi.Router {
	h := NewHandler(f.mgr, errors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	r := chi.NewRouter()
	r.Mount("/files", Routes(h))
	return r
}

func serve(r http.Handler, req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateFolder(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	req := testutil.WithToken(testutil.NewJSONRequest(t, http.MethodPost, "/files", map[string]any{
		"name": "images",
		"type": "folder",
	}), aliceToken)
	rec := serve(r, req)
	rec.AssertStatus(t, http.StatusCreated)

	var v map[string]any
	rec.DecodeJSON(t, &v)
	if v["name"] != "images" || v["type"] != "folder" {
		t.Errorf("body = %v", v)
	}
	if v["userId"] != f.alice.ID.Hex() {
		t.Errorf("userId = %v, want %s", v["userId"], f.alice.ID.Hex())
	}
	if v["parentId"] != float64(0) {
		t.Errorf("parentId = %v, want 0", v["parentId"])
	}
	if v["isPublic"] != false {
		t.Errorf("isPublic = %v, want false", v["isPublic"])
	}
	if _, ok := v["localPath"]; ok {
		t.Error("content location must not be exposed")
	}
}

func TestHandler_CreateParentForms(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	folder, err := f.mgr.Create(context.Background(), aliceToken, CreateInput{Name: "dir", Type: "folder"})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}

	tests := []struct {
		name   string
		parent any
		want   any
	}{
		{"number zero", 0, float64(0)},
		{"string zero", "0", float64(0)},
		{"null", nil, float64(0)},
		{"folder id", folder.ID.Hex(), folder.ID.Hex()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.WithToken(testutil.NewJSONRequest(t, http.MethodPost, "/files", map[string]any{
				"name":     "x",
				"type":     "folder",
				"parentId": tt.parent,
			}), aliceToken)
			rec := serve(r, req)
			rec.AssertStatus(t, http.StatusCreated)

			var v map[string]any
			rec.DecodeJSON(t, &v)
			if v["parentId"] != tt.want {
				t.Errorf("parentId = %v, want %v", v["parentId"], tt.want)
			}
		})
	}
}

func TestHandler_CreateErrors(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	tests := []struct {
		name   string
		token  string
		body   map[string]any
		status int
		reason string
	}{
		{"no token", "", map[string]any{"name": "x", "type": "folder"}, http.StatusUnauthorized, apierr.ReasonUnauthorized},
		{"missing name", aliceToken, map[string]any{"type": "folder"}, http.StatusBadRequest, apierr.ReasonMissingName},
		{"missing type", aliceToken, map[string]any{"name": "x"}, http.StatusBadRequest, apierr.ReasonMissingType},
		{"missing data", aliceToken, map[string]any{"name": "x", "type": "file"}, http.StatusBadRequest, apierr.ReasonMissingData},
		{"unknown parent", aliceToken, map[string]any{"name": "x", "type": "folder", "parentId": "5f1e7d2a3b4c5d6e7f809102"}, http.StatusBadRequest, apierr.ReasonParentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/files", tt.body)
			if tt.token != "" {
				testutil.WithToken(req, tt.token)
			}
			rec := serve(r, req)
			rec.AssertStatus(t, tt.status)
			rec.AssertError(t, tt.reason)
		})
	}
}

func TestHandler_CreateGarbageBody(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	req, _ := http.NewRequest(http.MethodPost, "/files", strings.NewReader("{not json"))
	rec := serve(r, req)
	rec.AssertStatus(t, http.StatusUnauthorized)

	req, _ = http.NewRequest(http.MethodPost, "/files", strings.NewReader("{not json"))
	rec = serve(r, testutil.WithToken(req, aliceToken))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertError(t, apierr.ReasonMissingName)
}

func TestHandler_CreateBodyTooLarge(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.mgr, errors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	h.maxBody = 256
	r := chi.NewRouter()
	r.Mount("/files", Routes(h))

	body := map[string]any{"name": "big.png", "type": "image", "data": strings.Repeat("A", 512)}

	rec := serve(r, testutil.NewJSONRequest(t, http.MethodPost, "/files", body))
	rec.AssertStatus(t, http.StatusUnauthorized)
	rec.AssertError(t, apierr.ReasonUnauthorized)

	rec = serve(r, testutil.WithToken(testutil.NewJSONRequest(t, http.MethodPost, "/files", body), aliceToken))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertError(t, apierr.ReasonInvalidData)
	if f.nodes.count() != 0 {
		t.Errorf("nodes = %d, want 0", f.nodes.count())
	}

	// The same upload under the limit is accepted.
	h.maxBody = maxUploadSize
	rec = serve(r, testutil.WithToken(testutil.NewJSONRequest(t, http.MethodPost, "/files", map[string]any{
		"name": "small.txt", "type": "file", "data": b64("ok"),
	}), aliceToken))
	rec.AssertStatus(t, http.StatusCreated)
}

func TestHandler_ShowAndList(t *testing.T) {
	f := newFixture()
	r := newRouter(f)
	ctx := context.Background()

	folder, err := f.mgr.Create(ctx, aliceToken, CreateInput{Name: "dir", Type: "folder"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.mgr.Create(ctx, aliceToken, CreateInput{Name: "a.json", Type: "file", Data: b64("{}"), ParentID: folder.ID.Hex()}); err != nil {
		t.Fatal(err)
	}

	rec := serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files/"+folder.ID.Hex()), aliceToken))
	rec.AssertStatus(t, http.StatusOK)

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files/"+folder.ID.Hex()), bobToken))
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertError(t, apierr.ReasonNotFound)

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files?parentId="+folder.ID.Hex()), aliceToken))
	rec.AssertStatus(t, http.StatusOK)
	var children []map[string]any
	rec.DecodeJSON(t, &children)
	if len(children) != 1 || children[0]["name"] != "a.json" {
		t.Errorf("children = %v", children)
	}

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files?page=3"), aliceToken))
	rec.AssertStatus(t, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty page body = %q, want []", rec.Body.String())
	}

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files?page=500000000000000000"), aliceToken))
	rec.AssertStatus(t, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("huge page body = %q, want []", rec.Body.String())
	}

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files?page=abc"), aliceToken))
	rec.AssertStatus(t, http.StatusOK)
	var all []map[string]any
	rec.DecodeJSON(t, &all)
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2 (bad page falls back to 0)", len(all))
	}

	rec = serve(r, testutil.NewRequest(http.MethodGet, "/files"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestHandler_PublishUnpublish(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	node, err := f.mgr.Create(context.Background(), aliceToken, CreateInput{Name: "a.json", Type: "file", Data: b64("{}")})
	if err != nil {
		t.Fatal(err)
	}

	rec := serve(r, testutil.WithToken(testutil.NewRequest(http.MethodPut, "/files/"+node.ID.Hex()+"/publish"), aliceToken))
	rec.AssertStatus(t, http.StatusOK)
	var v map[string]any
	rec.DecodeJSON(t, &v)
	if v["isPublic"] != true {
		t.Errorf("isPublic after publish = %v", v["isPublic"])
	}

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodPut, "/files/"+node.ID.Hex()+"/unpublish"), aliceToken))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &v)
	if v["isPublic"] != false {
		t.Errorf("isPublic after unpublish = %v", v["isPublic"])
	}

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodPut, "/files/"+node.ID.Hex()+"/publish"), bobToken))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestHandler_Data(t *testing.T) {
	f := newFixture()
	r := newRouter(f)
	ctx := context.Background()

	node, err := f.mgr.Create(ctx, aliceToken, CreateInput{Name: "pic.png", Type: "image", Data: b64("pngbytes")})
	if err != nil {
		t.Fatal(err)
	}
	folder, err := f.mgr.Create(ctx, aliceToken, CreateInput{Name: "dir", Type: "folder"})
	if err != nil {
		t.Fatal(err)
	}

	rec := serve(r, testutil.NewRequest(http.MethodGet, "/files/"+node.ID.Hex()+"/data"))
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertError(t, apierr.ReasonNotFound)

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files/"+node.ID.Hex()+"/data"), aliceToken))
	rec.AssertStatus(t, http.StatusOK)
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "pngbytes" {
		t.Errorf("body = %q", body)
	}

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files/"+node.ID.Hex()+"/data?size=500"), aliceToken))
	rec.AssertStatus(t, http.StatusNotFound)

	rec = serve(r, testutil.WithToken(testutil.NewRequest(http.MethodGet, "/files/"+folder.ID.Hex()+"/data"), aliceToken))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertError(t, apierr.ReasonFolderHasNoContent)
}

func TestHandler_InternalErrorIsOpaque(t *testing.T) {
	f := newFixture()
	f.blobs.putErr = io.ErrUnexpectedEOF
	r := newRouter(f)

	req := testutil.WithToken(testutil.NewJSONRequest(t, http.MethodPost, "/files", map[string]any{
		"name": "a.json", "type": "file", "data": b64("{}"),
	}), aliceToken)
	rec := serve(r, req)
	rec.AssertStatus(t, http.StatusInternalServerError)
	rec.AssertError(t, apierr.ReasonInternal)
	if strings.Contains(rec.Body.String(), "EOF") {
		t.Errorf("internal cause leaked: %s", rec.Body.String())
	}
}
