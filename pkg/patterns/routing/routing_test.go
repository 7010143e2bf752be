package routing

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/llmtest"
	"github.com/xhad/agentic/internal/models"
)

// classifier answers from the ticket text only, since the system prompt
// mentions every category's keywords.
func classifier() *llmtest.Model {
	return llmtest.New(func(_ context.Context, msgs []*schema.Message) (*schema.Message, error) {
		ticket := msgs[len(msgs)-1].Content
		label := "I am not sure"
		switch {
		case strings.Contains(ticket, "charged twice"):
			label = "Billing."
		case strings.Contains(ticket, "crashes"):
			label = "category: technical"
		case strings.Contains(ticket, "password"):
			label = "account"
		}
		return schema.AssistantMessage(label, nil), nil
	})
}

func responder() *llmtest.Model {
	return llmtest.Text(func(prompt string) string {
		first, _, _ := strings.Cut(prompt, ".")
		return "reply from " + first
	})
}

func TestLabel(t *testing.T) {
	r, err := New(context.Background(), classifier(), responder(), DefaultRoutes)
	require.NoError(t, err)

	tests := []struct {
		output string
		want   string
	}{
		{"billing", "billing"},
		{"  TECHNICAL\n", "technical"},
		{"The category is: account.", "account"},
		{"shipping", DefaultLabel},
		{"", DefaultLabel},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Label(tt.output))
		})
	}
}

func TestHandler(t *testing.T) {
	r, err := New(context.Background(), classifier(), responder(), DefaultRoutes)
	require.NoError(t, err)

	rt, err := r.Handler("Billing")
	require.NoError(t, err)
	assert.Equal(t, "billing", rt.Label)

	_, err = r.Handler("shipping")
	assert.ErrorIs(t, err, ErrUnknownRoute)
}

func TestNewRequiresDefaultRoute(t *testing.T) {
	_, err := New(context.Background(), classifier(), responder(), DefaultRoutes[:3])
	assert.ErrorIs(t, err, ErrUnknownRoute)
}

func TestRoute(t *testing.T) {
	ctx := context.Background()
	fast, smart := classifier(), responder()
	r, err := New(ctx, fast, smart, DefaultRoutes)
	require.NoError(t, err)

	d, err := r.Route(ctx, models.SupportTicket{ID: "7", Text: "I was charged twice this month"})
	require.NoError(t, err)
	assert.Equal(t, "7", d.TicketID)
	assert.Equal(t, "billing", d.Label)
	assert.Equal(t, "reply from You are a billing support specialist", d.Reply)

	require.Len(t, fast.Calls(), 1)
	assert.Contains(t, llmtest.Prompt(fast.Calls()[0]), "- technical: bugs")

	require.Len(t, smart.Calls(), 1)
	assert.Contains(t, llmtest.Prompt(smart.Calls()[0]), "charged twice")
}

func TestRouteFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx, classifier(), responder(), DefaultRoutes)
	require.NoError(t, err)

	d, err := r.Route(ctx, models.SupportTicket{ID: "1", Text: "Where is your office?"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLabel, d.Label)
}

func TestRouteAllKeepsOrder(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx, classifier(), responder(), DefaultRoutes)
	require.NoError(t, err)

	tickets := []models.SupportTicket{
		{ID: "1", Text: "the app crashes on start"},
		{ID: "2", Text: "I was charged twice"},
		{ID: "3", Text: "forgot my password"},
		{ID: "4", Text: "hello"},
	}
	decisions, err := r.RouteAll(ctx, tickets, 2)
	require.NoError(t, err)
	require.Len(t, decisions, 4)

	var got []string
	for i, d := range decisions {
		assert.Equal(t, tickets[i].ID, d.TicketID)
		got = append(got, d.Label)
	}
	assert.Equal(t, []string{"technical", "billing", "account", DefaultLabel}, got)
}
