// Package pipeline runs one bot through decide, generate and execute.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"social_bots/internal/metrics"
	"social_bots/internal/model"
	"social_bots/internal/social"
	"social_bots/internal/textgen"
)

// ErrBusy is returned by Run when the bot is already inside another pass.
var ErrBusy = errors.New("bot is busy")

// quoteChars are stripped from both ends of generated text.
const quoteChars = "\"'`“”‘’«» \t\r\n"

// Sampler picks a target post for comments and likes.
type Sampler interface {
	// SampleItem returns nil without error when no post qualifies.
	SampleItem(ctx context.Context, category model.Category, excludeAuthorID string) (*model.Post, error)
}

// TopicPicker chooses a topic for a new post.
type TopicPicker interface {
	Pick(category model.Category) string
}

// State is the transient state of one pass. It is never persisted.
type State struct {
	Bot     model.BotAccount
	Action  model.Action
	Content string
}

// Pipeline executes bot passes. It is safe for concurrent use; a single bot
// is never inside two passes at once.
type Pipeline struct {
	gen           textgen.Generator
	actions       social.Actions
	sampler       Sampler
	topics        TopicPicker
	log           *slog.Logger
	genTimeout    time.Duration
	socialTimeout time.Duration

	busy sync.Map // bot ID -> struct{}
}

// New creates a Pipeline. Zero timeouts disable the corresponding bound.
func New(gen textgen.Generator, actions social.Actions, sampler Sampler, topics TopicPicker, log *slog.Logger, genTimeout, socialTimeout time.Duration) *Pipeline {
	return &Pipeline{
		gen:           gen,
		actions:       actions,
		sampler:       sampler,
		topics:        topics,
		log:           log,
		genTimeout:    genTimeout,
		socialTimeout: socialTimeout,
	}
}

// Decide maps a bot type to the action of this pass.
func Decide(bot model.BotAccount) model.Action {
	switch bot.BotType {
	case model.BotPost:
		return model.ActionPost
	case model.BotComment:
		return model.ActionComment
	case model.BotLike:
		return model.ActionLike
	case model.BotCategory:
		return model.ActionAll
	default:
		return model.ActionSkip
	}
}

// StripQuotes removes surrounding quotes and whitespace that models like to add.
func StripQuotes(s string) string {
	return strings.Trim(s, quoteChars)
}

// Run performs one pass for bot: decide, generate, execute. No step is
// retried. Errors are returned for the caller to log; a panic inside the
// pass is converted into an error.
func (p *Pipeline) Run(ctx context.Context, bot model.BotAccount) (err error) {
	st := &State{Bot: bot, Action: Decide(bot)}
	action := string(st.Action)

	if _, loaded := p.busy.LoadOrStore(bot.ID, struct{}{}); loaded {
		metrics.RecordRun(action, metrics.RunBusy)
		return ErrBusy
	}
	defer p.busy.Delete(bot.ID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		switch {
		case err != nil:
			metrics.RecordRun(action, metrics.RunFailed)
		case st.Action == model.ActionSkip:
			metrics.RecordRun(action, metrics.RunSkipped)
		default:
			metrics.RecordRun(action, metrics.RunOK)
		}
	}()

	if st.Action == model.ActionSkip {
		p.log.Debug("skip bot", "bot_id", bot.ID, "bot_type", bot.BotType)
		return nil
	}

	if err := p.Generate(ctx, st); err != nil {
		return err
	}
	if err := p.Execute(ctx, st); err != nil {
		return err
	}

	p.log.Debug("bot pass done", "bot_id", bot.ID, "action", st.Action)
	return nil
}

// Generate produces post content for POST and ALL. Other actions are left untouched.
func (p *Pipeline) Generate(ctx context.Context, st *State) error {
	if st.Action != model.ActionPost && st.Action != model.ActionAll {
		return nil
	}

	topic := p.topics.Pick(st.Bot.Category)
	text, err := p.generate(ctx, textgen.PostPrompt(st.Bot.Headline, st.Bot.Category, topic))
	if err != nil {
		return fmt.Errorf("generate post: %w", err)
	}
	st.Content = text
	return nil
}

// Execute performs the side effects of the decided action.
// For ALL every sub-action runs even when an earlier one fails; their
// errors are logged and Execute returns nil.
func (p *Pipeline) Execute(ctx context.Context, st *State) error {
	switch st.Action {
	case model.ActionPost:
		return p.post(ctx, st)
	case model.ActionComment:
		return p.comment(ctx, st)
	case model.ActionLike:
		return p.like(ctx, st)
	case model.ActionAll:
		steps := []struct {
			name string
			fn   func(context.Context, *State) error
		}{
			{"post", p.post},
			{"comment", p.comment},
			{"like", p.like},
		}
		var errs []error
		for _, step := range steps {
			if err := step.fn(ctx, st); err != nil {
				p.log.Warn("bot sub-action failed", "bot_id", st.Bot.ID, "step", step.name, "error", err)
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			p.log.Debug("bot pass finished with failed sub-actions", "bot_id", st.Bot.ID, "failed", len(errs))
		}
		return nil
	default:
		return nil
	}
}

func (p *Pipeline) post(ctx context.Context, st *State) error {
	text := StripQuotes(st.Content)
	if text == "" {
		metrics.RecordSideEffect("post", "error")
		return errors.New("create post: empty content")
	}

	err := p.social(ctx, func(ctx context.Context) error {
		return p.actions.CreatePost(ctx, st.Bot.BotKey, text)
	})
	if err != nil {
		metrics.RecordSideEffect("post", "error")
		return fmt.Errorf("create post: %w", err)
	}
	metrics.RecordSideEffect("post", "ok")
	p.log.Info("bot posted", "bot_id", st.Bot.ID, "category", st.Bot.Category)
	return nil
}

func (p *Pipeline) comment(ctx context.Context, st *State) error {
	target, err := p.sampler.SampleItem(ctx, st.Bot.Category, st.Bot.ID)
	if err != nil {
		return fmt.Errorf("sample comment target: %w", err)
	}
	if target == nil {
		metrics.RecordSideEffect("comment", "no_target")
		p.log.Debug("no comment target", "bot_id", st.Bot.ID, "category", st.Bot.Category)
		return nil
	}

	raw, err := p.generate(ctx, textgen.CommentPrompt(st.Bot.Headline, target.Content))
	if err != nil {
		metrics.RecordSideEffect("comment", "error")
		return fmt.Errorf("generate comment: %w", err)
	}
	text := StripQuotes(raw)
	if text == "" {
		metrics.RecordSideEffect("comment", "error")
		return errors.New("create comment: empty content")
	}

	err = p.social(ctx, func(ctx context.Context) error {
		return p.actions.CreateComment(ctx, st.Bot.BotKey, target.ID, text)
	})
	if err != nil {
		metrics.RecordSideEffect("comment", "error")
		return fmt.Errorf("create comment on %s: %w", target.ID, err)
	}
	metrics.RecordSideEffect("comment", "ok")
	p.log.Info("bot commented", "bot_id", st.Bot.ID, "post_id", target.ID)
	return nil
}

func (p *Pipeline) like(ctx context.Context, st *State) error {
	target, err := p.sampler.SampleItem(ctx, st.Bot.Category, st.Bot.ID)
	if err != nil {
		return fmt.Errorf("sample like target: %w", err)
	}
	if target == nil {
		metrics.RecordSideEffect("like", "no_target")
		p.log.Debug("no like target", "bot_id", st.Bot.ID, "category", st.Bot.Category)
		return nil
	}

	err = p.social(ctx, func(ctx context.Context) error {
		return p.actions.CreateLike(ctx, st.Bot.BotKey, target.ID)
	})
	if err != nil {
		metrics.RecordSideEffect("like", "error")
		return fmt.Errorf("create like on %s: %w", target.ID, err)
	}
	metrics.RecordSideEffect("like", "ok")
	p.log.Info("bot liked", "bot_id", st.Bot.ID, "post_id", target.ID)
	return nil
}

func (p *Pipeline) generate(ctx context.Context, prompt textgen.Prompt) (string, error) {
	if p.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.genTimeout)
		defer cancel()
	}
	return p.gen.Generate(ctx, prompt)
}

func (p *Pipeline) social(ctx context.Context, call func(context.Context) error) error {
	if p.socialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.socialTimeout)
		defer cancel()
	}
	return call(ctx)
}
