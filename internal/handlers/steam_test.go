package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/getreststore/api/internal/services"
)

type stubSteamHandlerService struct {
	profileFunc  func(ctx context.Context, steamID string) (services.SteamProfile, error)
	commentsFunc func(ctx context.Context, page, limit int) (services.CommentsPage, error)
	inventory    []services.InventoryItem
	inventoryErr error
}

func (s *stubSteamHandlerService) Profile(ctx context.Context, steamID string) (services.SteamProfile, error) {
	if s.profileFunc != nil {
		return s.profileFunc(ctx, steamID)
	}
	return services.SteamProfile{SteamID: steamID}, nil
}

func (s *stubSteamHandlerService) Inventory(ctx context.Context) ([]services.InventoryItem, error) {
	return s.inventory, s.inventoryErr
}

func (s *stubSteamHandlerService) Comments(ctx context.Context, page, limit int) (services.CommentsPage, error) {
	if s.commentsFunc != nil {
		return s.commentsFunc(ctx, page, limit)
	}
	return services.CommentsPage{}, nil
}

func newSteamTestRouter(svc services.SteamService, steamID string) chi.Router {
	r := chi.NewRouter()
	NewSteamHandlers(svc, steamID).Routes(r)
	return r
}

func TestSteamProfileUsesConfiguredDefault(t *testing.T) {
	var gotID string
	router := newSteamTestRouter(&stubSteamHandlerService{
		profileFunc: func(_ context.Context, steamID string) (services.SteamProfile, error) {
			gotID = steamID
			return services.SteamProfile{SteamID: steamID, PersonaName: "GetRest"}, nil
		},
	}, "76561198000000000")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotID != "76561198000000000" {
		t.Errorf("expected configured steam id, got %q", gotID)
	}
}

func TestSteamProfileQueryOverrides(t *testing.T) {
	var gotID string
	router := newSteamTestRouter(&stubSteamHandlerService{
		profileFunc: func(_ context.Context, steamID string) (services.SteamProfile, error) {
			gotID = steamID
			return services.SteamProfile{SteamID: steamID}, nil
		},
	}, "76561198000000000")

	req := httptest.NewRequest(http.MethodGet, "/profile?steamId=76561198999999999", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if gotID != "76561198999999999" {
		t.Errorf("query steam id must win, got %q", gotID)
	}
}

func TestSteamProfileMissingID(t *testing.T) {
	router := newSteamTestRouter(&stubSteamHandlerService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestSteamProfileNotFound(t *testing.T) {
	router := newSteamTestRouter(&stubSteamHandlerService{
		profileFunc: func(context.Context, string) (services.SteamProfile, error) {
			return services.SteamProfile{}, services.ErrSteamProfileNotFound
		},
	}, "76561198000000000")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "profile_not_found" {
		t.Errorf("expected profile_not_found code, got %v", body["error"])
	}
}

func TestSteamInventory(t *testing.T) {
	router := newSteamTestRouter(&stubSteamHandlerService{
		inventory: []services.InventoryItem{
			{ID: "100_0", Name: "Dragonclaw Hook", Qty: 1, Price: 750000},
		},
	}, "76561198000000000")

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Items []services.InventoryItem `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].Price != 750000 {
		t.Errorf("unexpected inventory payload: %+v", body.Items)
	}
}

func TestSteamInventoryUnavailable(t *testing.T) {
	router := newSteamTestRouter(&stubSteamHandlerService{
		inventoryErr: services.ErrSteamUnavailable,
	}, "76561198000000000")

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestSteamCommentsPagination(t *testing.T) {
	var gotPage, gotLimit int
	router := newSteamTestRouter(&stubSteamHandlerService{
		commentsFunc: func(_ context.Context, page, limit int) (services.CommentsPage, error) {
			gotPage, gotLimit = page, limit
			return services.CommentsPage{
				Pagination: services.CommentsPagination{Page: page, Limit: limit, Total: 45, HasMore: true},
			}, nil
		},
	}, "76561198000000000")

	req := httptest.NewRequest(http.MethodGet, "/comments?page=2&limit=20", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotPage != 2 || gotLimit != 20 {
		t.Errorf("expected page=2 limit=20, got page=%d limit=%d", gotPage, gotLimit)
	}
}

func TestSteamCommentsDefaultsWhenAbsent(t *testing.T) {
	var gotPage, gotLimit int
	router := newSteamTestRouter(&stubSteamHandlerService{
		commentsFunc: func(_ context.Context, page, limit int) (services.CommentsPage, error) {
			gotPage, gotLimit = page, limit
			return services.CommentsPage{}, nil
		},
	}, "76561198000000000")

	req := httptest.NewRequest(http.MethodGet, "/comments", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	// Zero lets the service substitute its own defaults.
	if gotPage != 0 || gotLimit != 0 {
		t.Errorf("expected zero page/limit, got page=%d limit=%d", gotPage, gotLimit)
	}
}

func TestSteamCommentsRejectsBadPaging(t *testing.T) {
	router := newSteamTestRouter(&stubSteamHandlerService{}, "76561198000000000")

	for _, target := range []string{"/comments?page=0", "/comments?page=abc", "/comments?limit=-1"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, rr.Code)
		}
	}
}
