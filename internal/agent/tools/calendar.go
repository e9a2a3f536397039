package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
)

const (
	ToolCalendarList   = "calendar_list"
	ToolCalendarCreate = "calendar_create"
	ToolCalendarClear  = "calendar_clear"
)

const (
	calendarTimeLayout = "2006-01-02T15:04"
	calendarDateLayout = "2006-01-02"
)

// Event is one calendar entry. Times are stored as ISO strings in the
// calendarTimeLayout form.
type Event struct {
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration int    `json:"duration"`
}

// calendarStore is a JSON-file-backed event store. The mutex serializes
// conflicting writes; the engine guarantees at most one in-flight
// side-effecting call per turn, concurrent turns still contend here.
type calendarStore struct {
	mu   sync.Mutex
	path string
}

func newCalendarStore(path string) *calendarStore {
	return &calendarStore{path: path}
}

func (s *calendarStore) load() ([]Event, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		// a corrupt store starts over empty rather than bricking the tool
		return []Event{}, nil
	}
	return events, nil
}

func (s *calendarStore) save(events []Event) error {
	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calendar: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create calendar dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

func parseCalendarTime(s string, endOfDay bool) (time.Time, error) {
	if strings.Contains(s, "T") {
		return time.Parse(calendarTimeLayout, s)
	}
	t, err := time.Parse(calendarDateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Minute)
	}
	return t, nil
}

// =========== calendar_list (read-only) ===========

type CalendarListInput struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type CalendarList struct {
	store *calendarStore
}

func NewCalendarList(store *calendarStore) *CalendarList {
	return &CalendarList{store: store}
}

func (t *CalendarList) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolCalendarList,
		Desc: "List calendar events, optionally restricted to a date range.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"start_date": {
				Type: "string",
				Desc: "Start of the range, e.g. '2026-08-01'",
			},
			"end_date": {
				Type: "string",
				Desc: "End of the range (inclusive), e.g. '2026-08-31'",
			},
		}),
	}
}

func (t *CalendarList) Risk() RiskClass {
	return RiskReadOnly
}

func (t *CalendarList) Validate(input json.RawMessage) error {
	var in CalendarListInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("calendar_list input must be a JSON object: %w", err)
	}
	if in.StartDate != "" {
		if _, err := parseCalendarTime(in.StartDate, false); err != nil {
			return fmt.Errorf("start_date must be ISO format: %w", err)
		}
	}
	if in.EndDate != "" {
		if _, err := parseCalendarTime(in.EndDate, true); err != nil {
			return fmt.Errorf("end_date must be ISO format: %w", err)
		}
	}
	return nil
}

func (t *CalendarList) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in CalendarListInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("unmarshal input: %w", err)
	}

	t.store.mu.Lock()
	events, err := t.store.load()
	t.store.mu.Unlock()
	if err != nil {
		return "", err
	}

	start := time.Time{}
	end := time.Date(9999, 12, 31, 23, 59, 0, 0, time.UTC)
	if in.StartDate != "" {
		start, _ = parseCalendarTime(in.StartDate, false)
	}
	if in.EndDate != "" {
		end, _ = parseCalendarTime(in.EndDate, true)
	}

	filtered := make([]Event, 0, len(events))
	for _, e := range events {
		at, err := time.Parse(calendarTimeLayout, e.Start)
		if err != nil {
			continue
		}
		if !at.Before(start) && !at.After(end) {
			filtered = append(filtered, e)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Start < filtered[j].Start })

	b, err := json.Marshal(filtered)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(b), nil
}

// =========== calendar_create (side-effecting) ===========

type CalendarCreateInput struct {
	Title           string `json:"title"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type CalendarCreate struct {
	store *calendarStore
}

func NewCalendarCreate(store *calendarStore) *CalendarCreate {
	return &CalendarCreate{store: store}
}

func (t *CalendarCreate) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolCalendarCreate,
		Desc: "Create a new event in the calendar. This changes external state and requires confirmation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"title": {
				Type:     "string",
				Desc:     "Title of the event, e.g. 'Meeting with John'",
				Required: true,
			},
			"start_time": {
				Type:     "string",
				Desc:     "Start time in ISO format, e.g. '2026-09-01T10:00'",
				Required: true,
			},
			"duration_minutes": {
				Type:     "number",
				Desc:     "Event length in minutes, e.g. 60",
				Required: true,
			},
		}),
	}
}

func (t *CalendarCreate) Risk() RiskClass {
	return RiskSideEffecting
}

func (t *CalendarCreate) Validate(input json.RawMessage) error {
	var in CalendarCreateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("calendar_create input must be a JSON object: %w", err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if in.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if _, err := time.Parse(calendarTimeLayout, in.StartTime); err != nil {
		return fmt.Errorf("start_time must be ISO format, e.g. '2026-09-01T10:00': %w", err)
	}
	return nil
}

func (t *CalendarCreate) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in CalendarCreateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("unmarshal input: %w", err)
	}
	start, err := time.Parse(calendarTimeLayout, in.StartTime)
	if err != nil {
		return "", fmt.Errorf("start_time must be ISO format: %w", err)
	}
	event := Event{
		Title:    in.Title,
		Start:    start.Format(calendarTimeLayout),
		End:      start.Add(time.Duration(in.DurationMinutes) * time.Minute).Format(calendarTimeLayout),
		Duration: in.DurationMinutes,
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	events, err := t.store.load()
	if err != nil {
		return "", err
	}
	events = append(events, event)
	if err := t.store.save(events); err != nil {
		return "", err
	}

	b, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(b), nil
}

// =========== calendar_clear (side-effecting) ===========

type CalendarClear struct {
	store *calendarStore
}

func NewCalendarClear(store *calendarStore) *CalendarClear {
	return &CalendarClear{store: store}
}

func (t *CalendarClear) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        ToolCalendarClear,
		Desc:        "Delete all events from the calendar. This changes external state and requires confirmation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}
}

func (t *CalendarClear) Risk() RiskClass {
	return RiskSideEffecting
}

func (t *CalendarClear) Validate(input json.RawMessage) error {
	if len(input) == 0 {
		return nil
	}
	var in map[string]any
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("calendar_clear input must be a JSON object: %w", err)
	}
	return nil
}

func (t *CalendarClear) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.save([]Event{}); err != nil {
		return "", err
	}
	return `{"cleared":true}`, nil
}

var (
	_ Tool = (*CalendarList)(nil)
	_ Tool = (*CalendarCreate)(nil)
	_ Tool = (*CalendarClear)(nil)
)
