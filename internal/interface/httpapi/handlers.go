package httpapi

import (
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strings"

	"github.com/jinford/repo-outliner/internal/core/binding"
	"github.com/jinford/repo-outliner/internal/core/ingestion"
	"github.com/jinford/repo-outliner/internal/core/outline"
	"github.com/jinford/repo-outliner/internal/core/repoid"
	"github.com/jinford/repo-outliner/internal/infra/github"
	"github.com/jinford/repo-outliner/internal/platform/metrics"
)

const (
	msgMissingKeys    = "Missing API keys"
	msgInvalidRepo    = "Invalid repository data"
	msgInvalidTopic   = "Invalid topic"
	msgRepoListFailed = "Failed to fetch repositories"
	msgReused         = "Reusing existing vector store."
)

// repoRequest はリポジトリを指定するリクエストボディ
// owner を省略した場合は設定済みのオーナーで補完する
type repoRequest struct {
	Repo *struct {
		Name  string `json:"name"`
		Owner string `json:"owner"`
	} `json:"repo"`
	Topic string `json:"topic"`
}

type repositoryView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type uploadResponse struct {
	Message         string   `json:"message"`
	AttachedFileIDs []string `json:"attached_file_ids"`
	Errors          []string `json:"errors"`
	Skipped         int      `json:"skipped"`
	IndexID         string   `json:"vector_store_id,omitempty"`
	AssistantID     string   `json:"assistant_id,omitempty"`
	Reused          bool     `json:"reused"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Keys())
}

func (s *Server) handleRepos(w http.ResponseWriter, r *http.Request) {
	if s.repos == nil || s.cfg.GitHub.APIKey == "" {
		writeError(w, http.StatusForbidden, "GitHub API key not found")
		return
	}
	if err := s.cfg.ValidateOwner(); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	repos, err := s.repos.ListRepositories(r.Context(), s.cfg.GitHub.Owner)
	if err != nil {
		s.logger.Warn("リポジトリ一覧の取得に失敗しました", "owner", s.cfg.GitHub.Owner, "error", err)
		status := http.StatusBadGateway
		var statusErr *github.StatusError
		if errors.As(err, &statusErr) {
			status = statusErr.StatusCode
		}
		writeError(w, status, msgRepoListFailed)
		return
	}

	views := make([]repositoryView, 0, len(repos))
	for _, repo := range repos {
		views = append(views, repositoryView{ID: repo.ID, Name: repo.Name, URL: repo.HTMLURL})
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": views})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ValidateSource() != nil {
		writeError(w, http.StatusForbidden, msgMissingKeys)
		return
	}
	repo, _, ok := s.decodeRepo(w, r)
	if !ok {
		return
	}

	files := s.binder.ListFiles(r.Context(), repo)
	if files == nil {
		files = []ingestion.FileDescriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ValidateSource() != nil || s.cfg.ValidateOpenAI() != nil {
		writeError(w, http.StatusForbidden, msgMissingKeys)
		return
	}
	repo, _, ok := s.decodeRepo(w, r)
	if !ok {
		return
	}

	result, err := s.binder.Resolve(r.Context(), repo)
	if err != nil {
		s.logger.Error("インデックスの構築に失敗しました", "repository", repo.FullName(), "error", err)
		body := map[string]any{"error": err.Error()}
		if result != nil {
			body["attached_file_ids"] = result.UploadedIDs
			body["errors"] = result.Errors
		}
		writeJSON(w, http.StatusBadGateway, body)
		return
	}

	writeJSON(w, http.StatusOK, newUploadResponse(result))
}

func newUploadResponse(result *binding.BuildResult) uploadResponse {
	resp := uploadResponse{
		Message:         result.Message,
		AttachedFileIDs: result.UploadedIDs,
		Errors:          result.Errors,
		Skipped:         result.Skipped,
		IndexID:         result.IndexID,
		AssistantID:     result.AssistantID,
		Reused:          result.Reused,
	}
	if resp.Reused && resp.Message == "" {
		resp.Message = msgReused
	}
	if resp.AttachedFileIDs == nil {
		resp.AttachedFileIDs = []string{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	return resp
}

func (s *Server) handleGenerateOutline(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ValidateOpenAI() != nil {
		writeError(w, http.StatusForbidden, msgMissingKeys)
		return
	}
	repo, _, ok := s.decodeRepo(w, r)
	if !ok {
		return
	}

	s.stream(w, r, s.outliner.GenerateOutline(r.Context(), repo))
}

func (s *Server) handleExpandTopic(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ValidateOpenAI() != nil {
		writeError(w, http.StatusForbidden, msgMissingKeys)
		return
	}
	repo, topic, ok := s.decodeRepo(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(topic) == "" {
		writeError(w, http.StatusBadRequest, msgInvalidTopic)
		return
	}

	s.stream(w, r, s.outliner.ExpandTopic(r.Context(), repo, topic))
}

// stream はイベント列を SSE として書き出す
// 書き込みに失敗した場合（クライアント切断など）は消費をやめ、実行をキャンセルさせる
func (s *Server) stream(w http.ResponseWriter, r *http.Request, events iter.Seq[outline.StreamEvent]) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	done := metrics.StreamStarted()
	defer done()

	for e := range events {
		if err := outline.WriteSSE(w, e); err != nil {
			s.logger.Debug("ストリームの書き込みを中断しました", "requestID", RequestIDFrom(r.Context()), "error", err)
			return
		}
		flusher.Flush()
		metrics.RecordStreamEvent(e.Kind())
	}
}

// decodeRepo はリクエストボディからリポジトリとトピックを取り出す
// 不正な場合は 400 を書き込んで ok=false を返す
func (s *Server) decodeRepo(w http.ResponseWriter, r *http.Request) (repoid.Repository, string, bool) {
	var req repoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil || req.Repo == nil {
		writeError(w, http.StatusBadRequest, msgInvalidRepo)
		return repoid.Repository{}, "", false
	}

	input := req.Repo.Name
	if req.Repo.Owner != "" && !strings.Contains(input, "/") {
		input = req.Repo.Owner + "/" + input
	}
	repo, err := repoid.Parse(input, s.cfg.GitHub.Owner)
	if err != nil {
		s.logger.Debug("リポジトリ指定が不正です", "input", input, "error", err)
		writeError(w, http.StatusBadRequest, msgInvalidRepo)
		return repoid.Repository{}, "", false
	}
	return repo, req.Topic, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
