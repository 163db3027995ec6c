package httpapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alphabot-ai/infobase/internal/auth"
	"github.com/alphabot-ai/infobase/internal/config"
	"github.com/alphabot-ai/infobase/internal/keys"
	"github.com/alphabot-ai/infobase/internal/model"
	"github.com/alphabot-ai/infobase/internal/rate"
	"github.com/alphabot-ai/infobase/internal/reconcile"
	"github.com/alphabot-ai/infobase/internal/store"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

const (
	defaultPageSize         = 20
	defaultNotificationPage = 50
)

type Server struct {
	store    store.Store
	auth     *auth.Service
	limiter  rate.Limiter
	cfg      config.Config
	logger   *slog.Logger
	metrics  *Metrics
	gatherer prometheus.Gatherer
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry registers the request metrics on reg and serves it at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = NewMetrics(reg)
		s.gatherer = reg
	}
}

func NewServer(store store.Store, authSvc *auth.Service, limiter rate.Limiter, cfg config.Config, opts ...Option) *Server {
	s := &Server{store: store, auth: authSvc, limiter: limiter, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler is the full server: API routes, /metrics when a registry is set,
// and the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", s)
	return s.middleware(mux)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.handleAPI(w, r)
		return
	}
	notFound(w)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	switch {
	case len(segments) == 1 && segments[0] == "questions":
		switch r.Method {
		case http.MethodGet:
			s.handleListQuestions(w, r)
		case http.MethodPost:
			s.handleCreateQuestion(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	case len(segments) == 2 && segments[0] == "questions":
		switch r.Method {
		case http.MethodGet:
			s.handleGetQuestion(w, r, segments[1])
		case http.MethodDelete:
			s.handleDeleteQuestion(w, r, segments[1])
		default:
			methodNotAllowed(w)
		}
		return
	case len(segments) == 1 && segments[0] == "answers":
		switch r.Method {
		case http.MethodGet:
			s.handleListAnswers(w, r)
		case http.MethodPost:
			s.handleCreateAnswer(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	case len(segments) == 2 && segments[0] == "answers":
		if r.Method == http.MethodDelete {
			s.handleDeleteAnswer(w, r, segments[1])
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 3 && segments[0] == "answers" && segments[2] == "accept":
		if r.Method == http.MethodPut {
			s.handleAcceptAnswer(w, r, segments[1])
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 1 && segments[0] == "vote":
		if r.Method == http.MethodPost {
			s.handleVote(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 2 && segments[0] == "vote" && segments[1] == "status":
		if r.Method == http.MethodGet {
			s.handleVoteStatus(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 1 && segments[0] == "notifications":
		if r.Method == http.MethodGet {
			s.handleListNotifications(w, r, false)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 2 && segments[0] == "notifications" && segments[1] == "unread":
		if r.Method == http.MethodGet {
			s.handleListNotifications(w, r, true)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 2 && segments[0] == "notifications" && segments[1] == "unread-count":
		if r.Method == http.MethodGet {
			s.handleUnreadCount(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 2 && segments[0] == "notifications" && segments[1] == "mark-all-read":
		if r.Method == http.MethodPut {
			s.handleMarkAllRead(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 3 && segments[0] == "notifications" && segments[2] == "read":
		if r.Method == http.MethodPut {
			s.handleMarkRead(w, r, segments[1])
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 1 && segments[0] == "accounts":
		if r.Method == http.MethodPost {
			s.handleCreateAccount(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 2 && segments[0] == "auth":
		s.handleAuth(w, r, segments[1])
		return
	}

	notFound(w)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request, action string) {
	want := http.MethodPost
	if action == "me" {
		want = http.MethodGet
	}
	switch action {
	case "login", "logout", "challenge", "verify", "me":
	default:
		notFound(w)
		return
	}
	if r.Method != want {
		methodNotAllowed(w)
		return
	}
	switch action {
	case "login":
		s.handleLogin(w, r)
	case "logout":
		s.handleLogout(w, r)
	case "challenge":
		s.handleAuthChallenge(w, r)
	case "verify":
		s.handleAuthVerify(w, r)
	case "me":
		s.handleMe(w, r)
	}
}

// ---- questions ----

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntDefault(r.URL.Query().Get("limit"), defaultPageSize)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = defaultPageSize
	}
	questions, total, err := s.store.ListQuestions(r.Context(), store.QuestionListOpts{Page: page, Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, model.QuestionPage{Questions: questions, Page: page, Limit: limit, Total: total})
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request, idStr string) {
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	q, err := s.store.GetQuestion(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "question", s.cfg.RateLimits.QuestionPerMinute) {
		return
	}
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var in model.QuestionInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Tags = model.NormalizeTags(in.Tags)
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	now := model.Timestamp(time.Now())
	q := model.Question{
		Title:        in.Title,
		Description:  in.Description,
		Tags:         in.Tags,
		Author:       account.User().AuthorRef(),
		CreatedAt:    now,
		LastActivity: now,
	}
	id, err := s.store.CreateQuestion(r.Context(), &q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	created, err := s.store.GetQuestion(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request, idStr string) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	q, err := s.store.GetQuestion(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if q.Author.ID != account.ID {
		writeError(w, http.StatusForbidden, errors.New("only the author can delete this question"))
		return
	}
	if err := s.store.DeleteQuestion(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- answers ----

func (s *Server) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	questionID := parseInt64Default(r.URL.Query().Get("questionId"), 0)
	if questionID <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("questionId required"))
		return
	}
	if _, err := s.store.GetQuestion(r.Context(), questionID); err != nil {
		writeStoreError(w, err)
		return
	}
	answers, err := s.store.ListAnswers(r.Context(), questionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": answers})
}

func (s *Server) handleCreateAnswer(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "answer", s.cfg.RateLimits.AnswerPerMinute) {
		return
	}
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var in model.AnswerInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q, err := s.store.GetQuestion(r.Context(), in.QuestionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	a := model.Answer{
		QuestionID: in.QuestionID,
		Body:       in.Body,
		Author:     account.User().AuthorRef(),
		CreatedAt:  model.Timestamp(time.Now()),
	}
	id, err := s.store.CreateAnswer(r.Context(), &a)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	created, err := s.store.GetAnswer(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.notify(r.Context(), model.Notification{
		UserID:        q.Author.ID,
		RelatedUserID: account.ID,
		ParentID:      q.ID,
		ParentTitle:   q.Title,
		Type:          model.NotifyAnswerQuestion,
		Message:       fmt.Sprintf("%s answered your question", account.Name),
	})
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteAnswer(w http.ResponseWriter, r *http.Request, idStr string) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	a, err := s.store.GetAnswer(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if a.Author.ID != account.ID {
		writeError(w, http.StatusForbidden, errors.New("only the author can delete this answer"))
		return
	}
	if err := s.store.DeleteAnswer(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleAcceptAnswer(w http.ResponseWriter, r *http.Request, idStr string) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	a, err := s.store.GetAnswer(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	q, err := s.store.GetQuestion(r.Context(), a.QuestionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if q.Author.ID != account.ID {
		writeError(w, http.StatusForbidden, errors.New("only the question author can accept an answer"))
		return
	}
	accepted, err := s.store.AcceptAnswer(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !a.Accepted {
		s.notify(r.Context(), model.Notification{
			UserID:        a.Author.ID,
			RelatedUserID: account.ID,
			ParentID:      q.ID,
			ParentTitle:   q.Title,
			Type:          model.NotifyAnswerAccepted,
			Message:       fmt.Sprintf("%s accepted your answer", account.Name),
		})
	}
	writeJSON(w, http.StatusOK, accepted)
}

// ---- votes ----

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "vote", s.cfg.RateLimits.VotePerMinute) {
		return
	}
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var req struct {
		VotingID   int64      `json:"votingId"`
		Action     string     `json:"action"`
		TargetType model.Kind `json:"targetType"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !req.TargetType.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("invalid targetType"))
		return
	}
	if req.VotingID <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("votingId required"))
		return
	}
	gesture, err := model.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := s.store.ApplyVote(r.Context(), req.TargetType, req.VotingID, account.ID, func(cur model.VoteState) (model.VoteState, int) {
		return reconcile.Transition(cur, gesture)
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if out.Prior == model.VoteNone && out.Next != model.VoteNone {
		s.notifyVote(r.Context(), account, req.TargetType, req.VotingID, out.Next)
	}
	writeJSON(w, http.StatusOK, model.VoteResult{
		VotingID:   req.VotingID,
		TargetType: req.TargetType,
		Votes:      out.Score,
		Status:     out.Next,
	})
}

// notifyVote tells the target's author about a new vote.
func (s *Server) notifyVote(ctx context.Context, voter model.Account, kind model.Kind, id int64, state model.VoteState) {
	var authorID, questionID int64
	switch kind {
	case model.KindQuestion:
		q, err := s.store.GetQuestion(ctx, id)
		if err != nil {
			return
		}
		authorID, questionID = q.Author.ID, q.ID
	case model.KindAnswer:
		a, err := s.store.GetAnswer(ctx, id)
		if err != nil {
			return
		}
		authorID, questionID = a.Author.ID, a.QuestionID
	}
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return
	}
	typ, verb := model.NotifyVoteUp, "upvoted"
	if state == model.VoteDown {
		typ, verb = model.NotifyVoteDown, "downvoted"
	}
	s.notify(ctx, model.Notification{
		UserID:        authorID,
		RelatedUserID: voter.ID,
		ParentID:      questionID,
		ParentTitle:   q.Title,
		Type:          typ,
		Message:       fmt.Sprintf("%s %s your %s", voter.Name, verb, kind),
	})
}

func (s *Server) handleVoteStatus(w http.ResponseWriter, r *http.Request) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	kind := model.Kind(r.URL.Query().Get("targetType"))
	id := parseInt64Default(r.URL.Query().Get("votingId"), 0)
	if !kind.Valid() || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("targetType and votingId required"))
		return
	}
	state, err := s.store.GetVote(r.Context(), kind, id, account.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": state})
}

// ---- notifications ----

// notify stores n unless it would notify users about their own actions.
// Failures are logged and never fail the request.
func (s *Server) notify(ctx context.Context, n model.Notification) {
	if n.UserID == 0 || n.UserID == n.RelatedUserID {
		return
	}
	n.CreatedAt = model.Timestamp(time.Now())
	if _, err := s.store.CreateNotification(ctx, &n); err != nil {
		s.log(ctx).WarnContext(ctx, "create notification failed", "type", n.Type, "user", n.UserID, "error", err)
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, unreadOnly bool) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), defaultNotificationPage)
	list, err := s.store.ListNotifications(r.Context(), account.ID, limit, unreadOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	n, err := s.store.CountUnread(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, idStr string) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	if err := s.store.MarkNotificationRead(r.Context(), account.ID, id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	n, err := s.store.MarkAllNotificationsRead(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}

// ---- accounts and auth ----

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in model.RegisterInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := s.auth.Register(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, errors.New("email already registered"))
		case errors.Is(err, store.ErrDuplicateKey):
			writeError(w, http.StatusConflict, errors.New("public key already registered"))
		case in.PublicKey != "":
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, account.User())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "login", s.cfg.RateLimits.LoginPerMinute) {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, account, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(token, account))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, account.User())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthChallenge(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "challenge", s.cfg.RateLimits.LoginPerMinute) {
		return
	}
	var req struct {
		Alg string `json:"alg"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	alg := strings.ToLower(strings.TrimSpace(req.Alg))
	if alg != keys.AlgEd25519 && alg != keys.AlgSecp256k1 {
		writeError(w, http.StatusBadRequest, errors.New("alg must be ed25519 or secp256k1"))
		return
	}
	challenge, err := s.auth.CreateChallenge(r.Context(), alg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"challenge": challenge.Challenge,
		"expiresAt": model.Timestamp(challenge.ExpiresAt),
	})
}

func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Alg       string `json:"alg"`
		PublicKey string `json:"publicKey"`
		Challenge string `json:"challenge"`
		Signature string `json:"signature"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Alg == "" || req.PublicKey == "" || req.Challenge == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing fields"))
		return
	}
	token, account, err := s.auth.VerifyAndCreateToken(r.Context(), strings.TrimSpace(req.Alg), strings.TrimSpace(req.PublicKey), strings.TrimSpace(req.Challenge), strings.TrimSpace(req.Signature))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(token, account))
}

func loginResponse(token model.Token, account model.Account) model.LoginResponse {
	return model.LoginResponse{
		AccessToken: token.Token,
		ExpiresAt:   model.Timestamp(token.ExpiresAt),
		User:        account.User(),
	}
}

// ---- helpers ----

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) bool {
	rule := rate.PerMinute(limit)
	if !rule.Enabled() || s.limiter == nil {
		return true
	}
	ipKey := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(ipKey, rule.Limit, rule.Window); !ok {
		writeRateLimit(w, retry)
		return false
	}
	return true
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (model.Account, bool) {
	bearer := bearerToken(r)
	if bearer == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
		return model.Account{}, false
	}
	account, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = errors.New("invalid token")
		}
		writeError(w, http.StatusUnauthorized, err)
		return model.Account{}, false
	}
	return account, true
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parseID(w http.ResponseWriter, idStr string) (int64, bool) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid id"))
		return 0, false
	}
	return id, true
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound(w)
	case errors.Is(err, store.ErrDuplicateEmail), errors.Is(err, store.ErrDuplicateKey):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":      "rate limit exceeded",
		"retryAfter": int(retry.Seconds()),
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

func parseInt64Default(value string, def int64) int64 {
	if value == "" {
		return def
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	return def
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
