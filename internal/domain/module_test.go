package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampEstimate(t *testing.T) {
	tests := []struct {
		name        string
		minutes     int
		lo, hi      int
		want        int
		wantClamped bool
	}{
		{"above upper bound", 1000, ModuleMinutesMin, ModuleMinutesMax, 480, true},
		{"within bounds", 200, ModuleMinutesMin, ModuleMinutesMax, 200, false},
		{"below lower bound", 1, ModuleMinutesMin, ModuleMinutesMax, 15, true},
		{"at lower bound", 15, ModuleMinutesMin, ModuleMinutesMax, 15, false},
		{"at upper bound", 480, ModuleMinutesMin, ModuleMinutesMax, 480, false},
		{"task bounds low", 2, TaskMinutesMin, TaskMinutesMax, 5, true},
		{"task bounds high", 500, TaskMinutesMin, TaskMinutesMax, 240, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := ClampEstimate(tt.minutes, tt.lo, tt.hi)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClamped, clamped)
		})
	}
}

func TestNewModuleClampsEstimate(t *testing.T) {
	module, clamped, err := NewModule(uuid.New(), 0, "Foundations", "", 1000)
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, ModuleMinutesMax, module.EstimatedMinutes)

	module, clamped, err = NewModule(uuid.New(), 1, "Practice", "", 200)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, 200, module.EstimatedMinutes)
}

func TestNewTaskValidation(t *testing.T) {
	_, _, err := NewTask(uuid.Nil, 0, "Read chapter 1", "", 30)
	assert.ErrorIs(t, err, ErrEmptyTaskModuleID)

	_, _, err = NewTask(uuid.New(), 0, "", "", 30)
	assert.ErrorIs(t, err, ErrEmptyTaskTitle)

	task, clamped, err := NewTask(uuid.New(), 0, "Read chapter 1", "", 3)
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, TaskMinutesMin, task.EstimatedMinutes)
}
