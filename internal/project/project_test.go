package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	p := New("abc123", "Calculator", "build a calculator", nil)

	assert.Equal(t, "abc123", p.ID())
	assert.Equal(t, StatusPending, p.Status())
	assert.Equal(t, []string{"python"}, p.TechStack())
	assert.Empty(t, p.Files())
}

func TestUpdateStatus_ForwardOrder(t *testing.T) {
	p := New("p1", "n", "g", nil)

	require.NoError(t, p.UpdateStatus(StatusPlanning))
	require.NoError(t, p.UpdateStatus(StatusCoding))
	require.NoError(t, p.UpdateStatus(StatusTesting))
	require.NoError(t, p.UpdateStatus(StatusCompleted))
	assert.Equal(t, StatusCompleted, p.Status())
}

func TestUpdateStatus_RejectsSkips(t *testing.T) {
	tests := []struct {
		name string
		walk []Status
		next Status
	}{
		{"pending to coding", nil, StatusCoding},
		{"pending to testing", nil, StatusTesting},
		{"pending to completed", nil, StatusCompleted},
		{"planning to testing", []Status{StatusPlanning}, StatusTesting},
		{"backwards", []Status{StatusPlanning, StatusCoding}, StatusPlanning},
		{"terminal completed", []Status{StatusPlanning, StatusCoding, StatusTesting, StatusCompleted}, StatusPlanning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("p1", "n", "g", nil)
			for _, s := range tt.walk {
				require.NoError(t, p.UpdateStatus(s))
			}
			assert.ErrorIs(t, p.UpdateStatus(tt.next), ErrInvalidTransition)
		})
	}
}

func TestUpdateStatus_FailedFromAnyNonTerminal(t *testing.T) {
	for _, walk := range [][]Status{
		nil,
		{StatusPlanning},
		{StatusPlanning, StatusCoding},
		{StatusPlanning, StatusCoding, StatusTesting},
	} {
		p := New("p1", "n", "g", nil)
		for _, s := range walk {
			require.NoError(t, p.UpdateStatus(s))
		}
		require.NoError(t, p.UpdateStatus(StatusFailed))
		assert.Equal(t, StatusFailed, p.Status())

		// Failed is terminal.
		assert.ErrorIs(t, p.UpdateStatus(StatusFailed), ErrInvalidTransition)
	}

	// Completed is terminal too: no late failure flip.
	p := New("p1", "n", "g", nil)
	for _, s := range []Status{StatusPlanning, StatusCoding, StatusTesting, StatusCompleted} {
		require.NoError(t, p.UpdateStatus(s))
	}
	assert.ErrorIs(t, p.UpdateStatus(StatusFailed), ErrInvalidTransition)
}

func TestAddFile_RejectsDuplicates(t *testing.T) {
	p := New("p1", "n", "g", nil)

	require.NoError(t, p.AddFile("main.py"))
	require.NoError(t, p.AddFile("test_main.py"))
	assert.ErrorIs(t, p.AddFile("main.py"), ErrDuplicateFile)

	assert.Equal(t, []string{"main.py", "test_main.py"}, p.Files())
}

func TestSnapshotRoundTrip(t *testing.T) {
	p := New("p1", "Calc", "build a calculator", []string{"python", "javascript"})
	require.NoError(t, p.UpdateStatus(StatusPlanning))
	p.AddTask("write main")
	require.NoError(t, p.AddFile("main.py"))
	p.AddError("transient failure")
	p.AddLog("progress", "planning done", map[string]any{"tasks": 1})
	p.SetMetadata("style_guide", "pep8")

	data, err := p.Snapshot().Encode()
	require.NoError(t, err)

	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)

	restored, err := FromSnapshot(snap)
	require.NoError(t, err)

	assert.Equal(t, p.ID(), restored.ID())
	assert.Equal(t, p.Status(), restored.Status())
	assert.Equal(t, p.Files(), restored.Files())
	assert.Equal(t, p.Errors(), restored.Errors())
	assert.Equal(t, p.TechStack(), restored.TechStack())
	assert.Equal(t, "pep8", restored.Metadata("style_guide"))
	require.Len(t, restored.Logs(), 1)
	assert.Equal(t, "planning done", restored.Logs()[0].Message)
}

func TestFromSnapshot_RejectsUnknownStatus(t *testing.T) {
	_, err := FromSnapshot(Snapshot{ProjectID: "p1", Status: Status("exploded")})
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestFromSnapshot_RequiresID(t *testing.T) {
	_, err := FromSnapshot(Snapshot{Status: StatusCompleted})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	p := New("p1", "n", "g", nil)
	r.Put(p)
	got, err := r.Get("p1")
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestRegistry_Challenges(t *testing.T) {
	r := NewRegistry()

	_, err := r.Challenge("p1")
	assert.ErrorIs(t, err, ErrNoActiveChallenge)

	first := &Challenge{ProjectID: "p1", FilePath: "main.py"}
	r.SetChallenge(first)

	// A new challenge for the same project overwrites the prior one.
	second := &Challenge{ProjectID: "p1", FilePath: "util.py"}
	r.SetChallenge(second)

	got, err := r.Challenge("p1")
	require.NoError(t, err)
	assert.Equal(t, "util.py", got.FilePath)

	r.ClearChallenge("p1")
	_, err = r.Challenge("p1")
	assert.ErrorIs(t, err, ErrNoActiveChallenge)
}
