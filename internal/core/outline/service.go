package outline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/jinford/repo-outliner/internal/core/binding"
	"github.com/jinford/repo-outliner/internal/core/repoid"
)

// BindingResolver はリポジトリに対応するアシスタントを解決する
type BindingResolver interface {
	Lookup(ctx context.Context, repositoryName string) (*binding.Binding, error)
	Resolve(ctx context.Context, repo repoid.Repository) (*binding.BuildResult, error)
}

// Service はアウトライン生成とトピック展開のユースケースを提供する
type Service struct {
	bindings BindingResolver
	session  *Session
	logger   *slog.Logger
}

// NewService は新しい Service を作成する
func NewService(bindings BindingResolver, session *Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{bindings: bindings, session: session, logger: logger}
}

// GenerateOutline はリポジトリのアウトラインをストリームで返す
// バインディングが存在しない場合は先に構築する
func (s *Service) GenerateOutline(ctx context.Context, repo repoid.Repository) iter.Seq[StreamEvent] {
	return s.stream(ctx, repo, OutlinePrompt(repo.Name), Instructions(TemplateOutline))
}

// ExpandTopic はアウトラインの1セクションを展開した内容をストリームで返す
func (s *Service) ExpandTopic(ctx context.Context, repo repoid.Repository, topic string) iter.Seq[StreamEvent] {
	return s.stream(ctx, repo, ExpandTopicPrompt(repo.Name, topic), Instructions(TemplateExpandTopic))
}

func (s *Service) stream(ctx context.Context, repo repoid.Repository, prompt, instructions string) iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		assistantID, err := s.assistantFor(ctx, repo)
		if err != nil {
			s.logger.Warn("アシスタントの解決に失敗しました", "repository", repo.FullName(), "error", err)
			yield(ErrorEvent(err.Error()))
			return
		}

		for e := range s.session.Run(ctx, assistantID, prompt, instructions) {
			if !yield(e) {
				return
			}
		}
	}
}

func (s *Service) assistantFor(ctx context.Context, repo repoid.Repository) (string, error) {
	b, err := s.bindings.Lookup(ctx, repo.Name)
	if err == nil {
		return b.AssistantID, nil
	}
	if !errors.Is(err, binding.ErrBindingNotFound) {
		return "", err
	}

	s.logger.Info("バインディングが存在しないため構築します", "repository", repo.FullName())
	result, err := s.bindings.Resolve(ctx, repo)
	if err != nil {
		return "", err
	}
	if result.AssistantID == "" {
		return "", fmt.Errorf("assistant for %s was not created", repo.Name)
	}
	return result.AssistantID, nil
}
