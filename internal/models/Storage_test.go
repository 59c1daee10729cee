package models

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_KeepsSessionsAndRateLog(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	original := Snapshot{
		Version: SnapshotVersion,
		Sessions: map[string]*Session{
			"s1": {
				ID:        "s1",
				CreatedAt: now,
				Original:  Image{Data: []byte{1, 2, 3}, MimeType: "image/png", Width: 3, Height: 1},
				Decades:   []string{"1950s"},
				Results:   map[string]*GenerationResult{"1950s": DoneResult(&Image{Data: []byte{9}, MimeType: "image/png"}, now)},
				Stage:     StageShown,
			},
		},
		RateLog: []time.Time{now, now.Add(time.Minute)},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Snapshot
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, SnapshotVersion, restored.Version)
	require.Contains(t, restored.Sessions, "s1")
	s := restored.Sessions["s1"]
	assert.Equal(t, []byte{1, 2, 3}, s.Original.Data)
	assert.Equal(t, StatusDone, s.Results["1950s"].Status)
	assert.Equal(t, []byte{9}, s.Results["1950s"].Image.Data)
	assert.Len(t, restored.RateLog, 2)
}

func TestSnapshot_ExternalBackendOmitsSessions(t *testing.T) {
	data, err := json.Marshal(Snapshot{Version: SnapshotVersion})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sessions")
}

func TestSnapshot_LegacyArrayIsNotASnapshot(t *testing.T) {
	var s Snapshot
	_ = json.Unmarshal([]byte(`[{"id":"a"}]`), &s)
	assert.Zero(t, s.Version)
}
