package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"kassa_panel/internal/bank"
	"kassa_panel/internal/db"
)

type requestProcessRequest struct {
	RequestID int64  `json:"request_id"`
	Approve   bool   `json:"approve"`
	Note      string `json:"note"`
}

type requisiteCreateRequest struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Bank     string `json:"bank"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type requisiteIDRequest struct {
	RequisiteID int64 `json:"requisite_id"`
}

type settingSetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type broadcastRequest struct {
	Text string `json:"text"`
}

func (a *API) adminRequests(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	items, err := a.DB.ListRequests(r.Context(), status, 200)
	if err != nil {
		a.Log.Errorf("admin requests: %v", err)
		writeJSON(w, 500, envelope{OK: false, Error: "db error"})
		return
	}
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{"items": items}})
}

// adminRequestProcess applies a manual decision. This handler is the only
// path that may reject a withdrawal; automated withdrawal rejection is
// forbidden everywhere else.
func (a *API) adminRequestProcess(w http.ResponseWriter, r *http.Request) {
	var req requestProcessRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, 400, envelope{OK: false, Error: "bad json"})
		return
	}
	if req.RequestID <= 0 {
		writeJSON(w, 400, envelope{OK: false, Error: "bad request_id"})
		return
	}

	ctx := r.Context()
	if err := a.DB.ProcessRequest(ctx, req.RequestID, req.Approve, req.Note); err != nil {
		if errors.Is(err, db.ErrBadTransition) {
			writeJSON(w, 400, envelope{OK: false, Error: "request is not active"})
			return
		}
		a.Log.Errorf("admin process: %v", err)
		writeJSON(w, 500, envelope{OK: false, Error: "process failed"})
		return
	}

	event := "request.rejected"
	if req.Approve {
		event = "request.approved"
	}
	a.Hub.Publish(event, map[string]any{"request_id": req.RequestID})
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{"ok": true}})
}

func (a *API) adminRequisites(w http.ResponseWriter, r *http.Request) {
	items, err := a.DB.ListRequisites(r.Context())
	if err != nil {
		a.Log.Errorf("admin requisites: %v", err)
		writeJSON(w, 500, envelope{OK: false, Error: "db error"})
		return
	}
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{"items": items}})
}

func (a *API) adminRequisiteCreate(w http.ResponseWriter, r *http.Request) {
	var req requisiteCreateRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, 400, envelope{OK: false, Error: "bad json"})
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Value) == "" {
		writeJSON(w, 400, envelope{OK: false, Error: "name and value required"})
		return
	}
	if _, err := bank.ParseKind(req.Bank); err != nil {
		writeJSON(w, 400, envelope{OK: false, Error: "unsupported bank"})
		return
	}

	rec := db.Requisite{
		Name:  strings.TrimSpace(req.Name),
		Value: strings.TrimSpace(req.Value),
		Bank:  strings.ToUpper(strings.TrimSpace(req.Bank)),
	}
	if e := strings.TrimSpace(req.Email); e != "" {
		rec.Email = &e
	}
	if p := req.Password; p != "" {
		rec.Password = &p
	}

	id, err := a.DB.CreateRequisite(r.Context(), &rec)
	if err != nil {
		a.Log.Errorf("admin requisite create: %v", err)
		writeJSON(w, 500, envelope{OK: false, Error: "create failed"})
		return
	}
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{"requisite_id": id}})
}

func (a *API) adminRequisiteActivate(w http.ResponseWriter, r *http.Request) {
	var req requisiteIDRequest
	if err := readJSON(r, &req); err != nil || req.RequisiteID <= 0 {
		writeJSON(w, 400, envelope{OK: false, Error: "bad requisite_id"})
		return
	}
	if err := a.DB.ActivateRequisite(r.Context(), req.RequisiteID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeJSON(w, 404, envelope{OK: false, Error: "not found"})
			return
		}
		a.Log.Errorf("admin requisite activate: %v", err)
		writeJSON(w, 500, envelope{OK: false, Error: "activate failed"})
		return
	}
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{"ok": true}})
}

func (a *API) adminRequisiteDelete(w http.ResponseWriter, r *http.Request) {
	var req requisiteIDRequest
	if err := readJSON(r, &req); err != nil || req.RequisiteID <= 0 {
		writeJSON(w, 400, envelope{OK: false, Error: "bad requisite_id"})
		return
	}
	if err := a.DB.DeleteRequisite(r.Context(), req.RequisiteID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeJSON(w, 404, envelope{OK: false, Error: "not found"})
			return
		}
		a.Log.Errorf("admin requisite delete: %v", err)
		writeJSON(w, 500, envelope{OK: false, Error: "delete failed"})
		return
	}
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{"ok": true}})
}

var allowedSettings = map[string]struct{}{
	db.SettingDepositBanks:     {},
	db.SettingDepositsEnabled:  {},
	db.SettingMaxDepositAmount: {},
}

func (a *API) adminSettingSet(w http.ResponseWriter, r *http.Request) {
	var req settingSetRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, 400, envelope{OK: false, Error: "bad json"})
		return
	}
	key := strings.TrimSpace(req.Key)
	if _, ok := allowedSettings[key]; !ok {
		writeJSON(w, 400, envelope{OK: false, Error: "unknown setting"})
		return
	}
	if err := a.DB.SetSetting(r.Context(), key, strings.TrimSpace(req.Value)); err != nil {
		a.Log.Errorf("admin setting set: %v", err)
		writeJSON(w, 500, envelope{OK: false, Error: "save failed"})
		return
	}
	a.Settings.Invalidate(r.Context())
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{"ok": true}})
}

func (a *API) adminBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, 400, envelope{OK: false, Error: "bad json"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" || len(text) > 4000 {
		writeJSON(w, 400, envelope{OK: false, Error: "bad text"})
		return
	}
	if a.Tg == nil {
		writeJSON(w, 400, envelope{OK: false, Error: "bot disabled"})
		return
	}
	// Detached from the request context so the fan-out outlives the response.
	jobID := a.Tg.StartBroadcast(context.Background(), text)
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{"job_id": jobID}})
}
