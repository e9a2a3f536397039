package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalendar(t *testing.T) (*CalendarList, *CalendarCreate, *CalendarClear) {
	t.Helper()
	store := newCalendarStore(filepath.Join(t.TempDir(), "calendar.json"))
	return NewCalendarList(store), NewCalendarCreate(store), NewCalendarClear(store)
}

func mustCreate(t *testing.T, create *CalendarCreate, title, start string, minutes int) {
	t.Helper()
	input, err := json.Marshal(CalendarCreateInput{Title: title, StartTime: start, DurationMinutes: minutes})
	require.NoError(t, err)
	require.NoError(t, create.Validate(input))
	_, err = create.Invoke(context.Background(), input)
	require.NoError(t, err)
}

func TestCalendarCreateAndList(t *testing.T) {
	list, create, _ := newTestCalendar(t)

	mustCreate(t, create, "Team standup", "2026-09-01T10:00", 30)
	mustCreate(t, create, "1:1 with manager", "2026-09-03T14:00", 60)

	out, err := list.Invoke(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 2)
	// sorted by start time
	assert.Equal(t, "Team standup", events[0].Title)
	assert.Equal(t, "2026-09-01T10:30", events[0].End)
	assert.Equal(t, "1:1 with manager", events[1].Title)
}

func TestCalendarListDateRange(t *testing.T) {
	list, create, _ := newTestCalendar(t)

	mustCreate(t, create, "early", "2026-09-01T09:00", 30)
	mustCreate(t, create, "late", "2026-09-15T09:00", 30)

	out, err := list.Invoke(context.Background(), json.RawMessage(`{"start_date":"2026-09-10","end_date":"2026-09-20"}`))
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "late", events[0].Title)
}

func TestCalendarListEndDateInclusive(t *testing.T) {
	list, create, _ := newTestCalendar(t)

	mustCreate(t, create, "on the boundary", "2026-09-20T18:00", 30)

	out, err := list.Invoke(context.Background(), json.RawMessage(`{"end_date":"2026-09-20"}`))
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	assert.Len(t, events, 1)
}

func TestCalendarClear(t *testing.T) {
	list, create, clear := newTestCalendar(t)

	mustCreate(t, create, "doomed", "2026-09-01T10:00", 30)
	out, err := clear.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cleared":true}`, out)

	out, err = list.Invoke(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestCalendarValidate(t *testing.T) {
	list, create, _ := newTestCalendar(t)

	assert.Error(t, create.Validate(json.RawMessage(`{"title":"","start_time":"2026-09-01T10:00","duration_minutes":30}`)))
	assert.Error(t, create.Validate(json.RawMessage(`{"title":"x","start_time":"tomorrow at ten","duration_minutes":30}`)))
	assert.Error(t, create.Validate(json.RawMessage(`{"title":"x","start_time":"2026-09-01T10:00","duration_minutes":0}`)))

	assert.Error(t, list.Validate(json.RawMessage(`{"start_date":"next week"}`)))
	assert.NoError(t, list.Validate(json.RawMessage(`{"start_date":"2026-09-01"}`)))
}

func TestCalendarRiskClasses(t *testing.T) {
	list, create, clear := newTestCalendar(t)
	assert.Equal(t, RiskReadOnly, list.Risk())
	assert.Equal(t, RiskSideEffecting, create.Risk())
	assert.Equal(t, RiskSideEffecting, clear.Risk())
}

func TestCalendarCorruptStoreStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calendar.json")
	store := newCalendarStore(path)
	require.NoError(t, store.save([]Event{{Title: "x", Start: "2026-09-01T10:00"}}))

	// clobber the file, then make sure listing degrades to empty
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	list := NewCalendarList(store)
	out, err := list.Invoke(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
