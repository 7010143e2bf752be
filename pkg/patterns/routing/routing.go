// Package routing classifies support tickets with a fast model and hands each
// one to the prompt registered for its label.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/llm"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownRoute = errors.New("unknown route")

const DefaultLabel = "general"

type Route struct {
	Label       string
	Description string
	Prompt      string
}

var DefaultRoutes = []Route{
	{
		Label:       "billing",
		Description: "charges, refunds, invoices, payment methods",
		Prompt: `You are a billing support specialist. Acknowledge the problem, explain the
likely cause and list the concrete steps the customer should take. Never promise
a refund; say that the billing team will review it.`,
	},
	{
		Label:       "technical",
		Description: "bugs, errors, crashes, setup and performance problems",
		Prompt: `You are a technical support engineer. Give numbered troubleshooting steps,
starting with the most likely fix, and ask for logs or versions if needed.`,
	},
	{
		Label:       "account",
		Description: "login, password, profile, security and account deletion",
		Prompt: `You are an account security specialist. Explain how to regain or secure
access. Never ask for the password.`,
	},
	{
		Label:       DefaultLabel,
		Description: "anything else",
		Prompt:      `You are a friendly support agent. Answer the question briefly and point to the right team if needed.`,
	},
}

var classifyTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage(`Classify the support ticket into exactly one category.

Categories:
{labels}

Reply with the category name only.`),
	schema.UserMessage("{ticket}"),
)

// Decision is the routed answer for one ticket.
type Decision struct {
	TicketID string `json:"ticket_id,omitempty"`
	Label    string `json:"label"`
	Reply    string `json:"reply"`
}

type routeState struct {
	ticket string
}

type Router struct {
	routes map[string]Route
	labels string
	runner compose.Runnable[map[string]any, *Decision]
}

// New builds a router over routes. One route must carry DefaultLabel; it
// receives every ticket the classifier cannot place.
func New(ctx context.Context, fast, smart model.BaseChatModel, routes []Route) (*Router, error) {
	r := &Router{routes: make(map[string]Route, len(routes))}
	for _, rt := range routes {
		r.routes[strings.ToLower(rt.Label)] = rt
	}
	if _, ok := r.routes[DefaultLabel]; !ok {
		return nil, fmt.Errorf("%w: no %q route registered", ErrUnknownRoute, DefaultLabel)
	}
	r.labels = describe(routes)

	branch := compose.NewChainBranch[string](func(ctx context.Context, label string) (string, error) {
		if _, ok := r.routes[label]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownRoute, label)
		}
		return label, nil
	})
	for _, label := range r.sortedLabels() {
		rt := r.routes[label]
		branch.AddLambda(label, compose.InvokableLambda(handler(smart, label, rt)), compose.WithNodeName("handle_"+label))
	}

	chain := compose.NewChain[map[string]any, *Decision](
		compose.WithGenLocalState(func(context.Context) *routeState { return &routeState{} }),
	)
	chain.
		AppendChatTemplate(classifyTemplate,
			compose.WithNodeName("classify_prompt"),
			compose.WithStatePreHandler[map[string]any, *routeState](func(_ context.Context, in map[string]any, s *routeState) (map[string]any, error) {
				s.ticket, _ = in["ticket"].(string)
				return in, nil
			})).
		AppendChatModel(fast, compose.WithNodeName("classify")).
		AppendLambda(compose.InvokableLambda(func(_ context.Context, msg *schema.Message) (string, error) {
			return r.Label(msg.Content), nil
		}), compose.WithNodeName("label")).
		AppendBranch(branch)

	runner, err := chain.Compile(ctx, compose.WithGraphName("router"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile router: %w", err)
	}
	r.runner = runner
	return r, nil
}

// Label maps classifier output onto a registered label. The first word that
// names a route wins; anything else goes to the default route.
func (r *Router) Label(output string) string {
	words := strings.FieldsFunc(strings.ToLower(output), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '-'
	})
	for _, w := range words {
		if _, ok := r.routes[w]; ok {
			return w
		}
	}
	return DefaultLabel
}

// Handler looks up the route for label.
func (r *Router) Handler(label string) (Route, error) {
	rt, ok := r.routes[strings.ToLower(label)]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, label)
	}
	return rt, nil
}

func (r *Router) Route(ctx context.Context, ticket models.SupportTicket) (*Decision, error) {
	d, err := r.runner.Invoke(ctx, map[string]any{
		"labels": r.labels,
		"ticket": ticket.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to route ticket %s: %w", ticket.ID, err)
	}
	d.TicketID = ticket.ID
	return d, nil
}

// RouteAll routes tickets with at most concurrency in flight. Decisions keep
// the order of tickets.
func (r *Router) RouteAll(ctx context.Context, tickets []models.SupportTicket, concurrency int) ([]*Decision, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	decisions := make([]*Decision, len(tickets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, ticket := range tickets {
		g.Go(func() error {
			d, err := r.Route(ctx, ticket)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

func (r *Router) sortedLabels() []string {
	labels := make([]string, 0, len(r.routes))
	for l := range r.routes {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func handler(m model.BaseChatModel, label string, rt Route) func(context.Context, string) (*Decision, error) {
	return func(ctx context.Context, _ string) (*Decision, error) {
		var ticket string
		err := compose.ProcessState(ctx, func(_ context.Context, s *routeState) error {
			ticket = s.ticket
			return nil
		})
		if err != nil {
			return nil, err
		}

		reply, err := llm.Complete(ctx, m, rt.Prompt, ticket)
		if err != nil {
			return nil, err
		}
		return &Decision{Label: label, Reply: reply}, nil
	}
}

func describe(routes []Route) string {
	var b strings.Builder
	for _, rt := range routes {
		fmt.Fprintf(&b, "- %s: %s\n", strings.ToLower(rt.Label), rt.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
