package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/config"
	"github.com/k-comunity/prisma_srs/internal/activity"
	"github.com/k-comunity/prisma_srs/internal/auth"
	"github.com/k-comunity/prisma_srs/internal/lifecycle"
	"github.com/k-comunity/prisma_srs/internal/reviewvault"
	"github.com/k-comunity/prisma_srs/internal/srs"
	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

type apiHandler struct {
	cfg    *config.Config
	vault  *reviewvault.Server
	engine *lifecycle.Engine
	ledger *activity.Ledger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("encode-response")
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reviewvault.ErrUserNotFound),
		errors.Is(err, reviewvault.ErrItemNotFound),
		errors.Is(err, lifecycle.ErrUserNotFound),
		errors.Is(err, activity.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, srs.ErrInvalidRating),
		errors.Is(err, activity.ErrEmptyKind),
		errors.Is(err, lifecycle.ErrNotPendingDelete):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (a *apiHandler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.engine.Register(r.Context(), req.Username, req.Role); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

func (a *apiHandler) evaluateLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d, err := a.engine.EvaluateLogin(r.Context(), req.Username)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"allow":  d.Allow,
		"status": d.Status,
		"reason": d.Reason,
	})
}

func (a *apiHandler) createItem(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	var req struct {
		Prompt        string   `json:"prompt"`
		Options       []string `json:"options"`
		CorrectOption string   `json:"correct_option"`
		Explanation   string   `json:"explanation"`
		Category      string   `json:"category"`
		Topic         string   `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := a.vault.CreateItem(r.Context(), models.CreateItemParams{
		OwnerUsername: u.Username,
		Prompt:        req.Prompt,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
		Explanation:   req.Explanation,
		Category:      req.Category,
		Topic:         req.Topic,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// checkAnswer verifies a chosen option. The correct option and the
// explanation never ride along with the question itself, so a client
// cannot leak them before the learner commits to an answer.
func (a *apiHandler) checkAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID int64  `json:"item_id"`
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	item, err := a.vault.Queries.GetItem(r.Context(), req.ItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = reviewvault.ErrItemNotFound
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"correct":        req.Answer == item.CorrectOption,
		"correct_option": item.CorrectOption,
		"explanation":    item.Explanation,
	})
}

func (a *apiHandler) nextItem(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	sel, err := a.vault.NextItem(r.Context(), u.Username, r.URL.Query().Get("topic"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if !sel.Found {
		writeJSON(w, http.StatusOK, map[string]bool{"found": false})
		return
	}
	item, err := a.vault.Queries.GetItem(r.Context(), sel.ItemID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":      true,
		"is_advance": sel.IsAdvance,
		"item": map[string]any{
			"id":       item.ID,
			"prompt":   item.Prompt,
			"options":  item.Options,
			"category": item.Category,
			"topic":    item.Topic,
		},
	})
}

func (a *apiHandler) cardInfo(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, err := a.vault.GetCardInfo(r.Context(), u.Username, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if info.New {
		writeJSON(w, http.StatusOK, map[string]bool{"new": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new":            false,
		"stability":      info.State.Stability,
		"difficulty":     info.State.Difficulty,
		"interval_days":  info.State.IntervalDays,
		"due_date":       info.State.DueDate.Time.Format("2006-01-02"),
		"successes":      info.State.Successes,
		"failures":       info.State.Failures,
		"retrievability": info.Retrievability,
	})
}

func (a *apiHandler) gradeItem(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Rating      string  `json:"rating"`
		TimeSeconds float64 `json:"time_seconds"`
		Correct     *bool   `json:"correct"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	meta := map[string]any{}
	if req.TimeSeconds > 0 {
		meta["time_seconds"] = req.TimeSeconds
	}
	if req.Correct != nil {
		meta["result"] = *req.Correct
	}
	state, err := a.vault.Grade(r.Context(), u.Username, id, req.Rating, meta)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stability":     state.Stability,
		"difficulty":    state.Difficulty,
		"interval_days": state.IntervalDays,
		"due_date":      state.DueDate.Time.Format("2006-01-02"),
		"successes":     state.Successes,
		"failures":      state.Failures,
	})
}

func (a *apiHandler) listOwnItems(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	items, err := a.vault.ListOwnItems(r.Context(), u.Username)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"id":       item.ID,
			"prompt":   item.Prompt,
			"category": item.Category,
			"topic":    item.Topic,
			"status":   item.Status,
			"karma":    item.Karma,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *apiHandler) moderateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.vault.ModerateItem(r.Context(), id, req.Status); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (a *apiHandler) voteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Delta int32 `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Delta < -1 || req.Delta > 1 {
		http.Error(w, "delta must be -1 or 1", http.StatusBadRequest)
		return
	}
	karma, err := a.vault.AdjustKarma(r.Context(), id, req.Delta)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int32{"karma": karma})
}

func (a *apiHandler) recordEvent(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	var req struct {
		Kind     string         `json:"kind"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.ledger.RecordEvent(r.Context(), u.Username, req.Kind, req.Metadata); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

func (a *apiHandler) userStats(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	stats, err := a.vault.GetUserStats(r.Context(), u.Username)
	if err != nil {
		writeErr(w, err)
		return
	}
	byTopic := map[string]int64{}
	for _, row := range stats.LearnedByTopic {
		byTopic[row.Topic] = row.Count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_active_items": stats.TotalActiveItems,
		"learned_items":      stats.LearnedItems,
		"overdue_items":      stats.OverdueItems,
		"learned_by_topic":   byTopic,
	})
}

func (a *apiHandler) lifecycleScore(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	windowDays := a.cfg.QuotaWindowDays
	if d := r.URL.Query().Get("window_days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed <= 0 {
			http.Error(w, "bad window_days", http.StatusBadRequest)
			return
		}
		windowDays = parsed
	}
	ws, err := a.engine.Score(r.Context(), u.Username, windowDays)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"score":       ws.Score,
		"answers":     ws.Answers,
		"creates":     ws.Creates,
		"window_days": windowDays,
		"minimum":     a.cfg.MinWindowScore,
	})
}

func (a *apiHandler) setIntensive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		Enabled    bool   `json:"enabled"`
		WindowDays int    `json:"window_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.engine.SetIntensive(r.Context(), req.Username, req.Enabled, req.WindowDays); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"intensive": req.Enabled})
}

func (a *apiHandler) listPendingDelete(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.engine.ListPendingDelete(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	usernames := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		usernames = append(usernames, acct.Username)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending_delete": usernames})
}

func (a *apiHandler) pardon(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.engine.Pardon(r.Context(), u.Username, req.Username); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": lifecycle.StatusActive})
}

func (a *apiHandler) approveAccount(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	username := r.PathValue("username")
	if err := a.engine.Approve(r.Context(), u.Username, username); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"approved": true})
}

func (a *apiHandler) removeAccount(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if err := a.engine.RemoveAccount(r.Context(), username); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
