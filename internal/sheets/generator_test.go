package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/grimoire/internal/retry"
	"github.com/grimoire/internal/store"
	"github.com/grimoire/pkg/models"
)

type scriptedModel struct {
	replies map[string]string
	errs    map[string]error
	prompts []string
}

func (m *scriptedModel) Call(_ context.Context, input string, _ ...llms.CallOption) (string, error) {
	m.prompts = append(m.prompts, input)
	for name, err := range m.errs {
		if strings.Contains(input, `"`+name+`"`) {
			return "", err
		}
	}
	for name, reply := range m.replies {
		if strings.Contains(input, `"`+name+`"`) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

func newGenerator(t *testing.T, model TextModel) (*Generator, *store.Store) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "fiches_sorts"))
	cfg := retry.DefaultRetryConfig()
	cfg.MaxRetries = 0
	cfg.LogRetries = false
	return NewGenerator(model, st, Options{Interval: time.Millisecond, Retry: cfg}), st
}

func TestGenerateAll(t *testing.T) {
	model := &scriptedModel{
		replies: map[string]string{
			"Boule de feu": "```json\n{\"Nom\": \"Boule de feu\", \"Nom original\": \"Fireball\", \"Niveau\": 3, \"Portée\": 45, \"Description complète\": \"L'explosion.\",}\n```",
			"Lumière":      `{"Nom": "Lumière", "Niveau": 0}`,
			"Message":      "Désolé, je ne peux pas.",
		},
		errs: map[string]error{"Contresort": errors.New("status code: 401")},
	}
	gen, st := newGenerator(t, model)

	results, err := gen.GenerateAll(context.Background(), []string{"Boule de feu", "Lumière", "Message", "Contresort", "  "})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, StatusSaved, results[0].Status)
	assert.True(t, results[0].Indexed)
	assert.Equal(t, "boule_de_feu.json", results[0].File)

	// Saved but not indexed: no original name.
	assert.Equal(t, StatusSaved, results[1].Status)
	assert.False(t, results[1].Indexed)

	assert.Equal(t, StatusInvalid, results[2].Status)
	assert.Equal(t, StatusFailed, results[3].Status)
	assert.False(t, st.Has("Contresort"))

	spell, err := st.LoadByName("boule_de_feu")
	require.NoError(t, err)
	assert.Equal(t, models.Tier(3), spell.Tier)
	assert.Equal(t, "L'explosion.", spell.FullDescription)

	raw, err := os.ReadFile(st.PathFor("Message"))
	require.NoError(t, err)
	var placeholder map[string]string
	require.NoError(t, json.Unmarshal(raw, &placeholder))
	assert.Equal(t, InvalidJSONMessage, placeholder[models.KeyGenerationError])
	assert.Equal(t, "Désolé, je ne peux pas.", placeholder[models.KeyRawContent])

	idx, err := st.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, store.Index{{Name: "Boule de feu", OriginalName: "Fireball", Tier: 3, File: "boule_de_feu.json"}}, idx)

	// The placeholder is never read back as a record.
	listed, err := st.ListRecords()
	require.NoError(t, err)
	assert.Len(t, listed.Records, 2)
}

func TestGenerateAllSkipsExisting(t *testing.T) {
	model := &scriptedModel{}
	gen, st := newGenerator(t, model)
	_, err := st.Save("Lumière", []byte(`{"Nom": "Lumière", "Niveau": 0}`))
	require.NoError(t, err)

	results, err := gen.GenerateAll(context.Background(), []string{"Lumière"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusExisting, results[0].Status)
	assert.Empty(t, model.prompts)
}

func TestGenerateAllCancelled(t *testing.T) {
	gen, _ := newGenerator(t, &scriptedModel{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.GenerateAll(ctx, []string{"Lumière"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPromptNamesSpell(t *testing.T) {
	p := Prompt("Sphère de feu")
	assert.Contains(t, p, `"Sphère de feu"`)
	assert.Contains(t, p, `"Effet en surcaste"`)
}
