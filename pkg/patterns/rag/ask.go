package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/llm"
	"github.com/xhad/agentic/pkg/store"
	"golang.org/x/sync/errgroup"
)

var ErrNoRelevantContext = errors.New("no relevant context found")

// NotFoundAnswer is returned when no retrieved chunk is relevant.
const NotFoundAnswer = "I could not find anything in the knowledge base that answers this question."

const relevancePrompt = `You check whether a passage is useful for answering a question.
Reply with yes or no and nothing else.`

var answerTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage(`You are a helpful assistant with access to the following documentation.
Answer the question using only the numbered sources. Cite sources by number, like [1].
If the sources do not contain the answer, say so.`),
	schema.UserMessage("Sources:\n\n{context}\n\nQuestion: {question}"),
)

type AskConfig struct {
	TopK        int
	Concurrency int
}

// Answer is the reply to one question together with the chunks it was
// based on.
type Answer struct {
	Question string               `json:"question"`
	Text     string               `json:"answer"`
	Sources  []models.ScoredChunk `json:"sources,omitempty"`
}

type askState struct {
	question string
	sources  []models.ScoredChunk
}

type retrieval struct {
	question string
	chunks   []models.ScoredChunk
}

type Answerer struct {
	embedder Embedder
	index    store.Index
	judge    model.BaseChatModel
	config   AskConfig
	runner   compose.Runnable[string, *Answer]
}

// NewAnswerer compiles the question chain. judge runs the per-chunk relevance
// checks and m writes the answer.
func NewAnswerer(ctx context.Context, emb Embedder, index store.Index, judge, m model.BaseChatModel, config AskConfig) (*Answerer, error) {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	a := &Answerer{
		embedder: emb,
		index:    index,
		judge:    judge,
		config:   config,
	}

	chain := compose.NewChain[string, *Answer](
		compose.WithGenLocalState(func(context.Context) *askState { return &askState{} }),
	)
	chain.
		AppendLambda(compose.InvokableLambda(a.retrieve), compose.WithNodeName("retrieve")).
		AppendLambda(compose.InvokableLambda(a.filter), compose.WithNodeName("filter")).
		AppendChatTemplate(answerTemplate, compose.WithNodeName("answer_prompt")).
		AppendChatModel(m, compose.WithNodeName("answer")).
		AppendLambda(compose.InvokableLambda(collect), compose.WithNodeName("collect"))

	runner, err := chain.Compile(ctx, compose.WithGraphName("rag"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile rag chain: %w", err)
	}
	a.runner = runner
	return a, nil
}

// Ask answers question from the index. When nothing relevant is found the
// answer carries NotFoundAnswer and the error is ErrNoRelevantContext.
func (a *Answerer) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}

	ans, err := a.runner.Invoke(ctx, question)
	if errors.Is(err, ErrNoRelevantContext) {
		return &Answer{Question: question, Text: NotFoundAnswer}, ErrNoRelevantContext
	}
	if err != nil {
		return nil, err
	}
	return ans, nil
}

func (a *Answerer) retrieve(ctx context.Context, question string) (*retrieval, error) {
	err := compose.ProcessState(ctx, func(_ context.Context, s *askState) error {
		s.question = question
		return nil
	})
	if err != nil {
		return nil, err
	}

	vector, err := a.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	chunks, err := a.index.Search(ctx, store.Query{Text: question, Vector: vector}, a.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return &retrieval{question: question, chunks: chunks}, nil
}

func (a *Answerer) filter(ctx context.Context, r *retrieval) (map[string]any, error) {
	relevant, err := a.Relevant(ctx, r.question, r.chunks)
	if err != nil {
		return nil, err
	}
	if len(relevant) == 0 {
		return nil, ErrNoRelevantContext
	}

	err = compose.ProcessState(ctx, func(_ context.Context, s *askState) error {
		s.sources = relevant
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"question": r.question,
		"context":  FormatSources(relevant),
	}, nil
}

// Relevant asks the judge model about every chunk, at most Concurrency at a
// time, and returns the chunks judged relevant in their original order.
func (a *Answerer) Relevant(ctx context.Context, question string, chunks []models.ScoredChunk) ([]models.ScoredChunk, error) {
	keep := make([]bool, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			reply, err := llm.Complete(ctx, a.judge, relevancePrompt,
				fmt.Sprintf("Question: %s\n\nPassage:\n%s", question, c.Text))
			if err != nil {
				return fmt.Errorf("failed to check relevance of chunk %s: %w", c.ID, err)
			}
			keep[i] = isYes(reply)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var relevant []models.ScoredChunk
	for i, c := range chunks {
		if keep[i] {
			relevant = append(relevant, c)
		}
	}
	return relevant, nil
}

func isYes(reply string) bool {
	fields := strings.Fields(strings.ToLower(reply))
	return len(fields) > 0 && strings.Trim(fields[0], `."'!,:`) == "yes"
}

// FormatSources numbers chunks from 1 in the form the answer prompt cites.
func FormatSources(chunks []models.ScoredChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] Source: %s\n%s", i+1, c.Source, c.Text)
	}
	return b.String()
}

func collect(ctx context.Context, msg *schema.Message) (*Answer, error) {
	ans := &Answer{Text: strings.TrimSpace(msg.Content)}
	err := compose.ProcessState(ctx, func(_ context.Context, s *askState) error {
		ans.Question = s.question
		ans.Sources = s.sources
		return nil
	})
	return ans, err
}
