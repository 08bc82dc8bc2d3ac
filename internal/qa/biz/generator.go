package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/llm"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// Generator produces a grounded answer from retrieved chunks with a
// single chat completion call. Transient provider failures are retried
// exactly once after a fixed wait; quota failures are never retried.
type Generator struct {
	chat      llm.ChatProvider
	prompt    string
	timeout   time.Duration
	retryWait time.Duration
}

// NewGenerator creates a generator. The prompt template must contain
// the {{context}} and {{question}} placeholders.
func NewGenerator(chat llm.ChatProvider, prompt string, timeout, retryWait time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if retryWait <= 0 {
		retryWait = 2 * time.Second
	}
	return &Generator{chat: chat, prompt: prompt, timeout: timeout, retryWait: retryWait}
}

// BuildContext renders retrieved chunks into the context block given to
// the model. Chunk text is included verbatim alongside its source and
// page so the model can cite accurately.
func BuildContext(chunks []store.RetrievedChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Context %d]\n", i+1)
		fmt.Fprintf(&b, "Source: %s\n", c.Source)
		if c.Page > 0 {
			fmt.Fprintf(&b, "Page: %d\n", c.Page)
		} else {
			b.WriteString("Page: ?\n")
		}
		fmt.Fprintf(&b, "Content: %s", c.Text)
	}
	return b.String()
}

// Generate produces an answer for the question grounded in the chunks.
// Prior conversation turns, when present, precede the grounded prompt so
// follow-up questions can refer back to earlier answers. The call is
// bounded by the configured timeout. Cancellation of ctx propagates to
// the provider.
func (g *Generator) Generate(ctx context.Context, question string, chunks []store.RetrievedChunk, history []llm.Message) (string, error) {
	prompt := strings.NewReplacer(
		"{{context}}", BuildContext(chunks),
		"{{question}}", question,
	).Replace(g.prompt)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	call := func(ctx context.Context) (string, error) {
		if len(history) == 0 {
			return g.chat.Generate(ctx, prompt, "")
		}
		messages := make([]llm.Message, 0, len(history)+1)
		messages = append(messages, history...)
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
		return g.chat.Chat(ctx, messages)
	}

	answer, err := call(ctx)
	if err != nil && g.shouldRetry(ctx, err) {
		logger.Warnw("generation failed, retrying once", "error", err, "wait", g.retryWait)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(g.retryWait):
			answer, err = call(ctx)
		}
	}

	if err != nil {
		return "", g.mapError(err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", errors.ErrQAModelRefusal
	}
	return answer, nil
}

// shouldRetry permits the single retry only for transient failures with
// time left on the clock.
func (g *Generator) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if llm.IsQuota(err) {
		return false
	}
	return llm.IsTransient(err)
}

func (g *Generator) mapError(err error) error {
	var quota *llm.QuotaError
	if stderrors.As(err, &quota) {
		// Keep the typed quota error reachable for the wire encoding.
		return errors.ErrQAQuotaExceeded.WithMessage(quota.Message).WithCause(quota)
	}
	if stderrors.Is(err, llm.ErrEmptyCompletion) {
		return errors.ErrQAModelRefusal.WithCause(err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrQAQueryTimeout.WithCause(err)
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	return errors.ErrQAGenerationFailed.WithCause(err)
}
