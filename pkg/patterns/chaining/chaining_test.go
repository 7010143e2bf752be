package chaining

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/llmtest"
)

func scripted() *llmtest.Model {
	return llmtest.Text(func(prompt string) string {
		switch {
		case strings.Contains(prompt, "Extract the concrete product facts"):
			if strings.Contains(prompt, "weather") {
				return "NONE."
			}
			return "- 2 litre capacity\n- stainless steel"
		case strings.Contains(prompt, "Write a product description"):
			return "A roomy 2 litre kettle. Made of stainless steel, it is very very durable."
		case strings.Contains(prompt, "Tighten this description"):
			return "  A roomy 2 litre stainless steel kettle.  "
		}
		return ""
	})
}

func TestChainRun(t *testing.T) {
	ctx := context.Background()
	fast, smart := scripted(), scripted()

	c, err := New(ctx, fast, smart)
	require.NoError(t, err)

	res, err := c.Run(ctx, "Our new kettle holds 2 litres and is stainless steel.")
	require.NoError(t, err)
	assert.Equal(t, "- 2 litre capacity\n- stainless steel", res.Facts)
	assert.Contains(t, res.Draft, "durable")
	assert.Equal(t, "A roomy 2 litre stainless steel kettle.", res.Final)

	assert.Len(t, fast.Calls(), 2, "extract and polish")
	require.Len(t, smart.Calls(), 1)
	assert.Contains(t, llmtest.Prompt(smart.Calls()[0]), "stainless steel")
}

func TestChainGate(t *testing.T) {
	ctx := context.Background()
	fast, smart := scripted(), scripted()

	c, err := New(ctx, fast, smart)
	require.NoError(t, err)

	_, err = c.Run(ctx, "The weather was nice today.")
	assert.ErrorIs(t, err, ErrGate)
	assert.Empty(t, smart.Calls(), "draft must not run after the gate fails")

	_, err = c.Run(ctx, "   ")
	assert.ErrorIs(t, err, ErrGate)
}
