package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultUploadLimitIsFourMiB(t *testing.T) {
	cfg := defaultConfig()
	require.Equal(t, int64(4*1024*1024), cfg.Meal.MaxImageBytes)
}

func TestDefaultPersonaRequestsStructuredAnswers(t *testing.T) {
	cfg := defaultConfig()
	require.Contains(t, cfg.Chat.Persona, "栄養士")
	require.Contains(t, cfg.Chat.Persona, "箇条書き")
	require.Contains(t, cfg.Chat.Persona, "番号付きリスト")
	require.Contains(t, cfg.Chat.Persona, "見出し")
}

func TestDefaultsValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
}
