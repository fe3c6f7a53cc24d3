package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/availability"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/picker"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/presets"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/sessions"
)

// PickLister reads persisted picks. It is nil when the service runs without a
// database.
type PickLister interface {
	ListByPicker(ctx context.Context, pickerID string, limit int) ([]model.Pick, error)
}

type PickerHandler struct {
	sessions *sessions.Manager
	presets  *presets.Registry
	picks    PickLister
	logger   *slog.Logger
	now      func() time.Time
}

func NewPickerHandler(mgr *sessions.Manager, reg *presets.Registry, picks PickLister, logger *slog.Logger) *PickerHandler {
	return &PickerHandler{
		sessions: mgr,
		presets:  reg,
		picks:    picks,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *PickerHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/presets", h.ListPresets)
	mux.HandleFunc("POST /api/v1/pickers", h.Create)
	mux.HandleFunc("GET /api/v1/pickers/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/pickers/{id}", h.Delete)
	mux.HandleFunc("GET /api/v1/pickers/{id}/months/{index}", h.Month)
	mux.HandleFunc("GET /api/v1/pickers/{id}/slots", h.Slots)
	mux.HandleFunc("GET /api/v1/pickers/{id}/events", h.Events)
	mux.HandleFunc("GET /api/v1/pickers/{id}/picks", h.Picks)
	mux.HandleFunc("POST /api/v1/pickers/{id}/{action}", h.Action)
}

type createPickerRequest struct {
	Preset string `json:"preset"`
	// Now overrides the reference instant, RFC 3339.
	Now string `json:"now"`
}

type pickerResponse struct {
	PickerID string       `json:"picker_id"`
	Preset   string       `json:"preset"`
	ShowTime bool         `json:"show_time"`
	Theme    picker.Theme `json:"theme"`
	State    *stateItem   `json:"state,omitempty"`
	Years    []yearItem   `json:"years,omitempty"`
}

type stateItem struct {
	Ready       bool       `json:"ready"`
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	SelectedDay *dayRef    `json:"selected_day,omitempty"`
	SelectedAt  *time.Time `json:"selected_at,omitempty"`
	TodayYear   *int       `json:"today_year,omitempty"`
	TodayMonth  *int       `json:"today_month,omitempty"`
}

type dayRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type yearItem struct {
	Value       int  `json:"value"`
	Selected    bool `json:"selected"`
	Placeholder bool `json:"placeholder"`
}

type monthResponse struct {
	Index  int       `json:"index"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	Filled bool      `json:"filled"`
	Days   []dayItem `json:"days"`
}

type dayItem struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Weekday     int        `json:"weekday"`
	Date        *time.Time `json:"date,omitempty"`
	Disabled    bool       `json:"disabled"`
	Selected    bool       `json:"selected"`
	Slots       []slotItem `json:"slots,omitempty"`
}

type slotItem struct {
	Label       string     `json:"label"`
	At          *time.Time `json:"at,omitempty"`
	Selected    bool       `json:"selected"`
	Placeholder bool       `json:"placeholder"`
}

type actionRequest struct {
	Index int `json:"index"`
}

type actionResponse struct {
	OK       bool       `json:"ok"`
	PickedAt *time.Time `json:"picked_at,omitempty"`
	State    stateItem  `json:"state"`
}

type pickItem struct {
	PickID    string    `json:"pick_id"`
	PickedAt  time.Time `json:"picked_at"`
	DateOnly  bool      `json:"date_only"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *PickerHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"presets": h.presets.Names()})
}

func (h *PickerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPickerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
	}
	req.Preset = strings.TrimSpace(req.Preset)
	if req.Preset == "" {
		req.Preset = presets.DefaultName
	}

	now := h.now()
	if req.Now != "" {
		t, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			http.Error(w, "invalid now", http.StatusBadRequest)
			return
		}
		now = t
	}

	preset, err := h.presets.Get(req.Preset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	opts, err := preset.Options(now)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s, err := h.sessions.Create(r.Context(), req.Preset, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pickerResponse{
		PickerID: s.ID,
		Preset:   s.Preset,
		ShowTime: s.Picker.ShowTime(),
		Theme:    s.Picker.Theme(),
	})
}

func (h *PickerHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.Picker.State()
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := pickerResponse{
		PickerID: s.ID,
		Preset:   s.Preset,
		ShowTime: s.Picker.ShowTime(),
		Theme:    s.Picker.Theme(),
		State:    toStateItem(st),
	}
	if st.Ready {
		years, err := s.Picker.Years()
		if err != nil {
			h.writeError(w, err)
			return
		}
		resp.Years = make([]yearItem, len(years))
		for i, y := range years {
			resp.Years[i] = yearItem(y)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PickerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Month returns one month of the selected year. A month without slots yet is
// returned with filled=false and filled in the background.
func (h *PickerHandler) Month(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid month index", http.StatusBadRequest)
		return
	}
	// Asked before Month so that filled=false never comes with filled days
	// from a fill that Month itself scheduled.
	filled, err := s.Picker.MonthFilled(index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	m, err := s.Picker.Month(index)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := monthResponse{Index: index, Title: m.Title, Start: m.Start, Filled: filled, Days: make([]dayItem, len(m.Days))}
	for i, d := range m.Days {
		resp.Days[i] = dayItem{
			Title:       d.Title,
			Description: d.Description,
			Weekday:     d.Weekday,
			Date:        d.Date,
			Disabled:    d.Disabled,
			Selected:    d.Selected,
			Slots:       toSlotItems(d.Slots),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PickerHandler) Slots(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	slots, err := s.Picker.DaySlots()
	if err != nil {
		h.writeError(w, err)
		return
	}
	items := toSlotItems(slots)
	if items == nil {
		items = []slotItem{}
	}
	writeJSON(w, http.StatusOK, map[string][]slotItem{"slots": items})
}

func (h *PickerHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			http.Error(w, "invalid after", http.StatusBadRequest)
			return
		}
		after = v
	}
	writeJSON(w, http.StatusOK, map[string][]sessions.Event{"events": s.Events(after)})
}

func (h *PickerHandler) Picks(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.picks == nil {
		http.Error(w, "pick history unavailable", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}
	picks, err := h.picks.ListByPicker(r.Context(), s.ID, limit)
	if err != nil {
		h.logger.Error("list picks failed", "err", err, "picker_id", s.ID)
		http.Error(w, "failed to list picks", http.StatusInternalServerError)
		return
	}
	items := make([]pickItem, len(picks))
	for i, p := range picks {
		items[i] = pickItem{PickID: p.ID, PickedAt: p.PickedAt, DateOnly: p.DateOnly, CreatedAt: p.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string][]pickItem{"picks": items})
}

// Action drives the selection: year, day, slot and scroll take an index;
// next, prev and confirm take none.
func (h *PickerHandler) Action(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	action := r.PathValue("action")
	var req actionRequest
	switch action {
	case "year", "day", "slot", "scroll":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
	case "next", "prev", "confirm":
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}

	var (
		done     bool
		pickedAt *time.Time
		err      error
	)
	p := s.Picker
	switch action {
	case "year":
		done, err = p.SelectYear(req.Index)
	case "day":
		done, err = p.SelectDay(req.Index)
	case "slot":
		done, err = p.SelectSlot(req.Index)
	case "scroll":
		err = p.ItemScrolled(req.Index)
		done = err == nil
	case "next":
		done, err = p.NextMonth()
	case "prev":
		done, err = p.PrevMonth()
	case "confirm":
		var at time.Time
		at, done, err = p.Confirm()
		if done {
			pickedAt = &at
		}
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	st, err := p.State()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{OK: done, PickedAt: pickedAt, State: *toStateItem(st)})
}

func (h *PickerHandler) session(w http.ResponseWriter, r *http.Request) (*sessions.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return s, true
}

func (h *PickerHandler) writeError(w http.ResponseWriter, err error) {
	var cfgErr *content.ConfigError
	switch {
	case errors.Is(err, sessions.ErrNotFound), errors.Is(err, picker.ErrClosed):
		http.Error(w, "picker not found", http.StatusNotFound)
	case errors.Is(err, presets.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, picker.ErrNotConfigured):
		http.Error(w, "picker is still loading", http.StatusConflict)
	case errors.Is(err, picker.ErrMonthPending):
		http.Error(w, "month is still being filled", http.StatusConflict)
	case errors.Is(err, picker.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &cfgErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, sessions.ErrTooMany):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error("picker request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toStateItem(st picker.State) *stateItem {
	item := &stateItem{Ready: st.Ready, Year: st.Cursor.Year, Month: st.Cursor.Month, SelectedAt: st.SelectedAt}
	if ref := st.SelectedDay; ref != nil {
		item.SelectedDay = &dayRef{Year: ref.Year, Month: ref.Month, Day: ref.Day}
	}
	if key := st.TodayMonth; key != nil {
		item.TodayYear, item.TodayMonth = &key.Year, &key.Month
	}
	return item
}

func toSlotItems(slots []availability.Slot) []slotItem {
	if len(slots) == 0 {
		return nil
	}
	out := make([]slotItem, len(slots))
	for i, sl := range slots {
		out[i] = slotItem{Label: sl.Label, Selected: sl.Selected, Placeholder: sl.Placeholder}
		if !sl.Placeholder {
			at := sl.Instant
			out[i].At = &at
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
