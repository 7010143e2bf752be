package parallel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

var voteTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage(`You are one of several independent reviewers.
Answer the question about the text with YES or NO on the first line, then give
a one sentence reason.`),
	schema.UserMessage("Question: {question}\n\nText:\n{input}"),
)

type Vote struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

type VoteResult struct {
	Approved bool   `json:"approved"`
	Yes      int    `json:"yes"`
	No       int    `json:"no"`
	Votes    []Vote `json:"votes"`
}

type Voter struct {
	runner compose.Runnable[map[string]any, map[string]any]
}

// NewVoter samples m n times in parallel for every Judge call.
func NewVoter(ctx context.Context, m model.BaseChatModel, n int) (*Voter, error) {
	if n < 2 {
		return nil, errors.New("voting needs at least two samples")
	}

	par := compose.NewParallel()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("vote_%02d", i)
		c := compose.NewChain[map[string]any, *schema.Message]()
		c.AppendChatTemplate(voteTemplate).AppendChatModel(m)
		par.AddGraph(key, c, compose.WithNodeName(key))
	}

	chain := compose.NewChain[map[string]any, map[string]any]()
	chain.AppendParallel(par)

	runner, err := chain.Compile(ctx, compose.WithGraphName("voting"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile voting chain: %w", err)
	}
	return &Voter{runner: runner}, nil
}

// Judge asks question about input and returns the majority. Ties are
// rejected.
func (v *Voter) Judge(ctx context.Context, question, input string) (*VoteResult, error) {
	out, err := v.runner.Invoke(ctx, map[string]any{
		"question": question,
		"input":    input,
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	votes := make([]Vote, 0, len(keys))
	for _, k := range keys {
		msg, ok := out[k].(*schema.Message)
		if !ok {
			return nil, fmt.Errorf("unexpected vote output %T", out[k])
		}
		votes = append(votes, ParseVote(msg.Content))
	}
	return Tally(votes), nil
}

// ParseVote reads a YES/NO verdict from the first word of text. Anything
// that is not a yes counts as no.
func ParseVote(text string) Vote {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Vote{}
	}
	word := strings.ToLower(strings.Trim(fields[0], ".,:;!*"))
	reason := strings.TrimPrefix(strings.TrimSpace(text), fields[0])
	return Vote{
		Approve: word == "yes",
		Reason:  strings.TrimLeft(reason, " .,:;-\n"),
	}
}

func Tally(votes []Vote) *VoteResult {
	res := &VoteResult{Votes: votes}
	for _, v := range votes {
		if v.Approve {
			res.Yes++
		} else {
			res.No++
		}
	}
	res.Approved = res.Yes > res.No
	return res
}
