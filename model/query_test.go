package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryConfigValidate(t *testing.T) {
	t.Run("Default config is valid", func(t *testing.T) {
		assert.NoError(t, DefaultQueryConfig().Validate(), "Expected default query config to be valid")
	})

	t.Run("Rejects invalid values", func(t *testing.T) {
		mutations := map[string]func(*QueryConfig){
			"zero top k":         func(c *QueryConfig) { c.TopK = 0 },
			"negative window":    func(c *QueryConfig) { c.ContextWindow = -1 },
			"similarity above 1": func(c *QueryConfig) { c.MinSimilarity = 1.5 },
			"negative weight":    func(c *QueryConfig) { c.ContextWeight = -0.1 },
		}
		for name, mutate := range mutations {
			config := DefaultQueryConfig()
			mutate(&config)
			assert.ErrorIs(t, config.Validate(), ErrInvalidConfig, "Expected invalid config for %s", name)
		}
	})
}
