package tools

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grounded-agent/server/internal/agent/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	return NewRegistry(model.ToolsConfig{
		SandboxDir:   dir,
		CalendarPath: filepath.Join(dir, "calendar.json"),
	})
}

func TestRegistryClosedSet(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, []string{
		ToolCalculator,
		ToolCalendarClear,
		ToolCalendarCreate,
		ToolCalendarList,
		ToolFileRead,
		ToolFileWrite,
		ToolWebSearch,
	}, r.Names())

	_, ok := r.Get("teleport")
	assert.False(t, ok)
}

func TestRegistryInfosMatchTools(t *testing.T) {
	r := newTestRegistry(t)
	infos := r.Infos()
	require.Len(t, infos, len(r.Names()))
	for i, name := range r.Names() {
		assert.Equal(t, name, infos[i].Name)
		tool, ok := r.Get(name)
		require.True(t, ok)
		assert.NotEmpty(t, tool.Info().Desc)
	}
}

func TestRegistryRiskDeclarations(t *testing.T) {
	r := newTestRegistry(t)
	sideEffecting := map[string]bool{
		ToolCalendarCreate: true,
		ToolCalendarClear:  true,
		ToolFileWrite:      true,
	}
	for _, name := range r.Names() {
		tool, _ := r.Get(name)
		if sideEffecting[name] {
			assert.Equal(t, RiskSideEffecting, tool.Risk(), name)
		} else {
			assert.Equal(t, RiskReadOnly, tool.Risk(), name)
		}
	}
}
