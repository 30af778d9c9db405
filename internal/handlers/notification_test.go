package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/authz"
	"github.com/stanstork/noticeboard/internal/models"
	"github.com/stanstork/noticeboard/internal/notification"
)

type fakeService struct {
	resp        *models.Response
	err         error
	result      notification.InvokeResult
	lastReq     notification.Request
	lastID      models.Identifier
	lastAction  models.ActionKind
	refreshedBy string
}

func (f *fakeService) Notifications(_ context.Context, req notification.Request) (*models.Response, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeService) Invoke(_ context.Context, req notification.Request, id models.Identifier, action models.ActionKind) (notification.InvokeResult, error) {
	f.lastReq, f.lastID, f.lastAction = req, id, action
	return f.result, f.err
}

func (f *fakeService) Refresh(user string) {
	f.refreshedBy = user
}

func withUser(r *http.Request, user string, roles ...string) *http.Request {
	return r.WithContext(authz.WithIdentity(r.Context(), user, roles))
}

func TestListPassesIdentityAndParams(t *testing.T) {
	svc := &fakeService{resp: &models.Response{
		Categories: []models.Category{{Title: "Campus", Entries: []models.Entry{{Identifier: models.Identifier{Source: "news", ID: "1"}, Title: "Hello"}}}},
		Errors:     []models.Error{{Message: "Service Unavailable", Source: "lms"}},
	}}
	h := NewNotificationHandler(svc, zerolog.Nop())

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v2/notifications?term=2024SP&term=ignored", nil), "alice", "student")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastReq.User != "alice" || svc.lastReq.Param("term") != "2024SP" || len(svc.lastReq.Roles) != 1 {
		t.Errorf("request = %+v", svc.lastReq)
	}

	var body struct {
		Categories []struct {
			Entries []map[string]interface{} `json:"entries"`
		} `json:"categories"`
		Errors []map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Categories[0].Entries[0]["source"] != "news" || body.Categories[0].Entries[0]["id"] != "1" {
		t.Errorf("entry = %v", body.Categories[0].Entries[0])
	}
	if body.Errors[0]["error"] != "Service Unavailable" || body.Errors[0]["source"] != "lms" {
		t.Errorf("errors = %v", body.Errors)
	}
}

func TestListRequiresIdentity(t *testing.T) {
	h := NewNotificationHandler(&fakeService{}, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v2/notifications", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestInvokeStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		result     notification.InvokeResult
		err        error
		wantStatus int
	}{
		{"no redirect", notification.InvokeResult{}, nil, http.StatusNoContent},
		{"redirect", notification.InvokeResult{Redirect: "https://pay.example.edu"}, nil, http.StatusOK},
		{"unknown action", notification.InvokeResult{}, errors.Wrap(notification.ErrUnknownAction, "nope"), http.StatusBadRequest},
		{"invalid request", notification.InvokeResult{}, errors.Wrap(notification.ErrInvalidRequest, "user is required"), http.StatusBadRequest},
		{"missing entry", notification.InvokeResult{}, errors.Wrap(notification.ErrEntryNotFound, "news/1"), http.StatusNotFound},
		{"store down", notification.InvokeResult{}, errors.Wrap(notification.ErrStateStore, "write"), http.StatusBadGateway},
		{"other", notification.InvokeResult{}, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{result: tt.result, err: tt.err}
			h := NewNotificationHandler(svc, zerolog.Nop())

			req := withUser(httptest.NewRequest(http.MethodPost, "/api/v2/notifications/news/1/actions/READ", nil), "alice")
			req = mux.SetURLVars(req, map[string]string{"source": "news", "id": "1", "action": "READ"})
			rec := httptest.NewRecorder()
			h.Invoke(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if svc.lastID != (models.Identifier{Source: "news", ID: "1"}) || svc.lastAction != models.ActionRead {
				t.Errorf("invoked %v %q", svc.lastID, svc.lastAction)
			}
			if tt.wantStatus == http.StatusOK {
				var got notification.InvokeResult
				if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || got.Redirect != tt.result.Redirect {
					t.Errorf("body = %+v, err = %v", got, err)
				}
			}
		})
	}
}

func TestRefreshInvalidatesCaller(t *testing.T) {
	svc := &fakeService{}
	h := NewNotificationHandler(svc, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.Refresh(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/v2/notifications/refresh", nil), "alice"))

	if rec.Code != http.StatusNoContent || svc.refreshedBy != "alice" {
		t.Fatalf("status = %d, refreshed = %q", rec.Code, svc.refreshedBy)
	}
}
