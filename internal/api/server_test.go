package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/internal/repository/memory"
	"github.com/Kerhoff/synclist/internal/service"
	"github.com/Kerhoff/synclist/pkg/logger"
)

func setupServer(t *testing.T) (http.Handler, *memory.ItemRepository) {
	t.Helper()
	items := memory.NewItemRepository()
	svc := service.New(logger.Discard(), memory.NewListRepository(), items)
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	return NewServer(svc, ws, logger.Discard(), []string{"*"}).Handler(), items
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body=%s: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestHealth(t *testing.T) {
	h, _ := setupServer(t)
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestListFlow(t *testing.T) {
	h, items := setupServer(t)

	rec := do(t, h, http.MethodPost, "/lists", `{"name":"Groceries","deviceId":"D1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	var list models.List
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Name != "Groceries" || list.CreatedBy != "D1" || len(list.JoinCode) != models.JoinCodeLength {
		t.Fatalf("unexpected list %+v", list)
	}

	_, _ = items.Create(context.Background(), &models.Item{ID: "i2", ListID: list.ID, Text: "Eggs", Position: 1})
	_, _ = items.Create(context.Background(), &models.Item{ID: "i1", ListID: list.ID, Text: "Milk", Position: 0})

	rec = do(t, h, http.MethodGet, "/lists/"+list.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status=%d body=%s", rec.Code, rec.Body.String())
	}
	var full models.ListWithItems
	if err := json.Unmarshal(rec.Body.Bytes(), &full); err != nil {
		t.Fatal(err)
	}
	if full.ID != list.ID || len(full.Items) != 2 || full.Items[0].ID != "i1" {
		t.Fatalf("unexpected list %+v", full)
	}

	rec = do(t, h, http.MethodPost, "/lists/join", `{"joinCode":"`+strings.ToLower(list.JoinCode)+`","deviceId":"D2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("join status=%d body=%s", rec.Code, rec.Body.String())
	}
	var joined models.List
	if err := json.Unmarshal(rec.Body.Bytes(), &joined); err != nil {
		t.Fatal(err)
	}
	if joined.ID != list.ID {
		t.Fatalf("joined %s want %s", joined.ID, list.ID)
	}
}

func TestListErrors(t *testing.T) {
	h, _ := setupServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		msg    string
	}{
		{"create without name", http.MethodPost, "/lists", `{"deviceId":"D1"}`, http.StatusBadRequest, "name and deviceId are required"},
		{"create without device", http.MethodPost, "/lists", `{"name":"x"}`, http.StatusBadRequest, "name and deviceId are required"},
		{"join without code", http.MethodPost, "/lists/join", `{"deviceId":"D1"}`, http.StatusBadRequest, "joinCode and deviceId are required"},
		{"join unknown code", http.MethodPost, "/lists/join", `{"joinCode":"ZZZZZZ","deviceId":"D1"}`, http.StatusNotFound, "No list found with that code"},
		{"get unknown list", http.MethodGet, "/lists/nope", "", http.StatusNotFound, "List not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if got := errorMessage(t, rec); got != tc.msg {
				t.Fatalf("error=%q want %q", got, tc.msg)
			}
		})
	}

	rec := do(t, h, http.MethodPost, "/lists", `{bad`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d", rec.Code)
	}
}

func TestWebSocketRouteIsMounted(t *testing.T) {
	h, _ := setupServer(t)
	rec := do(t, h, http.MethodGet, "/ws?listId=L1&deviceId=D1", "")
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusTeapot)
	}
}
