// Package chi is the HTTP surface of the board: hand-written handlers over
// the go-chi router, with domain errors mapped to statuses through an
// ordered handler chain.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bbs/internal/domain"
	domalg "github.com/kailas-cloud/bbs/internal/domain/algorithm"
	domnotif "github.com/kailas-cloud/bbs/internal/domain/notification"
	dompost "github.com/kailas-cloud/bbs/internal/domain/post"
	healthuc "github.com/kailas-cloud/bbs/internal/usecase/health"
	notifuc "github.com/kailas-cloud/bbs/internal/usecase/notification"
	postuc "github.com/kailas-cloud/bbs/internal/usecase/post"
	searchuc "github.com/kailas-cloud/bbs/internal/usecase/search"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codePostNotFound     = "post_not_found"
	codeUnknownParent    = "unknown_parent"
	codeForbidden        = "forbidden"
	codeThrottled        = "throttled"
	codeDimMismatch      = "vector_dim_mismatch"
	codeMalformedAlg     = "malformed_algorithm"
	codeAlgNotFound      = "algorithm_not_found"
	codeAlgOwned         = "algorithm_owned"
	codeIdentityNotFound = "identity_not_found"
	codeIdentityExists   = "identity_exists"
	codeNotAdmitted      = "not_admitted"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the board's HTTP handlers.
type Server struct {
	posts         *postuc.Service
	search        *searchuc.Service
	notifications *notifuc.Service
	health        *healthuc.Service
	identities    IdentityRegistry
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	posts *postuc.Service,
	search *searchuc.Service,
	notifications *notifuc.Service,
	health *healthuc.Service,
	identities IdentityRegistry,
	logger *zap.Logger,
) *Server {
	s := &Server{
		posts:         posts,
		search:        search,
		notifications: notifications,
		health:        health,
		identities:    identities,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrPostNotFound, http.StatusNotFound, codePostNotFound),
		sentinelHandler(domain.ErrUnknownParent, http.StatusNotFound, codeUnknownParent),
		sentinelHandler(domain.ErrForbiddenAppend, http.StatusForbidden, codeForbidden),
		sentinelHandler(domain.ErrNotAdmitted, http.StatusForbidden, codeNotAdmitted),
		sentinelHandler(domain.ErrThrottled, http.StatusTooManyRequests, codeThrottled),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeDimMismatch),
		sentinelHandler(domain.ErrContentEmpty, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrContentTooLong, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrMalformedAlgorithm, http.StatusBadRequest, codeMalformedAlg),
		sentinelHandler(domain.ErrAlgorithmNotFound, http.StatusNotFound, codeAlgNotFound),
		sentinelHandler(domain.ErrAlgorithmOwned, http.StatusConflict, codeAlgOwned),
		sentinelHandler(domain.ErrIdentityNotFound, http.StatusNotFound, codeIdentityNotFound),
		sentinelHandler(domain.ErrIdentityExists, http.StatusConflict, codeIdentityExists),
	}
	return s
}

// Mount attaches all routes to the router. Identity-guarded routes carry
// the fingerprint middleware; health and metrics stay open.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.getHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/identity/register", s.registerIdentity)
	r.Put("/identity/{fingerprint}/admission", s.setAdmission)

	r.Group(func(r chi.Router) {
		r.Use(s.identityMiddleware())

		r.Post("/posts", s.createPost)
		r.Get("/posts", s.listPosts)
		r.Get("/posts/{postID}", s.getPost)
		r.Post("/posts/{postID}/append", s.appendToPost)
		r.Post("/posts/{postID}/like", s.likePost)

		r.Post("/search", s.searchPosts)
		r.Get("/feed", s.feed)

		r.Get("/algorithms", s.listAlgorithms)
		r.Post("/algorithms", s.saveAlgorithm)

		r.Get("/notifications", s.listNotifications)
		r.Post("/notifications/read", s.markNotificationsRead)
	})
}

// --- Requests / responses ---

type createPostRequest struct {
	Content  string    `json:"content"`
	Vector   []float32 `json:"vector"`
	Hashtags []string  `json:"hashtags,omitempty"`
	ParentID string    `json:"parent_id,omitempty"`
	Force    bool      `json:"force,omitempty"`
}

type postResponse struct {
	ID        string          `json:"id"`
	Author    string          `json:"author"`
	CreatedAt time.Time       `json:"created_at"`
	Content   string          `json:"content"`
	Hashtags  []string        `json:"hashtags"`
	ParentID  string          `json:"parent_id,omitempty"`
	Appends   []dompost.Append `json:"appends,omitempty"`
}

type createPostResponse struct {
	Decision      string        `json:"decision"`
	Post          *postResponse `json:"post,omitempty"`
	SimilarPostID string        `json:"similar_post_id,omitempty"`
	Similarity    float64       `json:"similarity,omitempty"`
}

type threadResponse struct {
	Post     postResponse   `json:"post"`
	Children []postResponse `json:"children"`
	Likes    int            `json:"likes"`
}

type summaryResponse struct {
	ID             string    `json:"id"`
	Author         string    `json:"author"`
	CreatedAt      time.Time `json:"created_at"`
	ContentPreview string    `json:"content_preview"`
	Hashtags       []string  `json:"hashtags"`
	Likes          int       `json:"likes"`
	ReplyCount     int       `json:"reply_count"`
}

type appendRequest struct {
	Content string `json:"content"`
}

type likeResponse struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

type searchRequest struct {
	Vector    []float32      `json:"vector"`
	Hashtags  []string       `json:"hashtags,omitempty"`
	Weights   map[string]any `json:"weights,omitempty"`
	Algorithm string         `json:"algorithm,omitempty"`
	Offset    int            `json:"offset,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

type searchHitResponse struct {
	summaryResponse
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity,omitempty"`
}

type saveAlgorithmRequest struct {
	Name    string         `json:"name"`
	Weights map[string]any `json:"weights"`
}

type registerIdentityRequest struct {
	DisplayName string `json:"display_name"`
}

type admissionRequest struct {
	Admitted bool `json:"admitted"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Post handlers ---

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	ident := identityFrom(r.Context())
	res, err := s.posts.Create(r.Context(), postuc.CreateInput{
		AuthorFingerprint: ident.Fingerprint,
		AuthorName:        ident.DisplayName,
		Content:           req.Content,
		Vector:            req.Vector,
		Hashtags:          req.Hashtags,
		ParentID:          req.ParentID,
		Force:             req.Force,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := createPostResponse{Decision: string(res.Decision)}
	status := http.StatusCreated
	if res.Decision == postuc.DecisionWarned {
		resp.SimilarPostID = res.SimilarPostID
		resp.Similarity = res.Similarity
		status = http.StatusOK
	} else {
		p := postToResponse(res.Post)
		resp.Post = &p
	}
	writeJSON(w, status, resp)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	th, err := s.posts.Get(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := threadResponse{
		Post:     postToResponse(th.Post),
		Children: make([]postResponse, 0, len(th.Children)),
		Likes:    th.Likes,
	}
	for _, c := range th.Children {
		resp.Children = append(resp.Children, postToResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	sums, err := s.posts.List(r.Context(), r.URL.Query().Get("hashtag"), offset, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]summaryResponse, 0, len(sums))
	for _, sum := range sums {
		items = append(items, summaryToResponse(sum))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) appendToPost(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	ident := identityFrom(r.Context())
	entry, err := s.posts.Append(r.Context(), chi.URLParam(r, "postID"),
		ident.Fingerprint, ident.DisplayName, req.Content)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) likePost(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	res, err := s.posts.Like(r.Context(), chi.URLParam(r, "postID"),
		ident.Fingerprint, ident.DisplayName)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: res.Liked, Count: res.Count})
}

// --- Search handlers ---

func (s *Server) searchPosts(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Weights) > 0 && req.Algorithm != "" {
		writeError(w, http.StatusBadRequest, codeBadRequest,
			"weights and algorithm are mutually exclusive")
		return
	}

	results, err := s.search.Search(r.Context(), searchuc.Input{
		Vector:        req.Vector,
		Hashtags:      req.Hashtags,
		Weights:       req.Weights,
		AlgorithmName: req.Algorithm,
		Offset:        req.Offset,
		Limit:         req.Limit,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": resultsToResponse(results)})
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	results, err := s.search.Feed(r.Context(), r.URL.Query().Get("hashtag"),
		r.URL.Query().Get("algorithm"), nil, offset, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": resultsToResponse(results)})
}

// --- Algorithm handlers ---

func (s *Server) saveAlgorithm(w http.ResponseWriter, r *http.Request) {
	var req saveAlgorithmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "algorithm name is required")
		return
	}

	ident := identityFrom(r.Context())
	alg, err := s.search.SaveAlgorithm(r.Context(), req.Name, ident.Fingerprint, req.Weights)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alg)
}

func (s *Server) listAlgorithms(w http.ResponseWriter, r *http.Request) {
	algs, err := s.search.Algorithms(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if algs == nil {
		algs = []domalg.Algorithm{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": algs})
}

// --- Notification handlers ---

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	ns, err := s.notifications.Unread(r.Context(), ident.Fingerprint)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if ns == nil {
		ns = []domnotif.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": ns})
}

func (s *Server) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	if err := s.notifications.MarkRead(r.Context(), ident.Fingerprint); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Identity handlers ---

func (s *Server) registerIdentity(w http.ResponseWriter, r *http.Request) {
	fingerprint := strings.TrimSpace(r.Header.Get(identityHeader))
	if fingerprint == "" {
		writeError(w, http.StatusUnauthorized, codeBadRequest, "missing "+identityHeader+" header")
		return
	}

	var req registerIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "display_name is required")
		return
	}

	ident := domain.Identity{
		Fingerprint: fingerprint,
		DisplayName: req.DisplayName,
		Admitted:    true,
	}
	if err := s.identities.Create(r.Context(), ident); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"fingerprint":  ident.Fingerprint,
		"display_name": ident.DisplayName,
	})
}

// setAdmission records an admission decision made by the onboarding system.
// Admission status is the only identity field that changes after
// registration.
func (s *Server) setAdmission(w http.ResponseWriter, r *http.Request) {
	var req admissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	fingerprint := chi.URLParam(r, "fingerprint")
	if err := s.identities.SetAdmitted(r.Context(), fingerprint, req.Admitted); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Health handler ---

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     report.Status,
		"checks":     report.Checks,
		"index_size": report.IndexSize,
	})
}

// --- Helpers ---

func postToResponse(p dompost.Post) postResponse {
	return postResponse{
		ID:        p.ID(),
		Author:    p.AuthorName(),
		CreatedAt: p.CreatedAt(),
		Content:   p.Content(),
		Hashtags:  p.Hashtags(),
		ParentID:  p.ParentID(),
		Appends:   p.Appends(),
	}
}

func summaryToResponse(sum dompost.Summary) summaryResponse {
	hashtags := sum.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return summaryResponse{
		ID:             sum.ID,
		Author:         sum.Author,
		CreatedAt:      sum.CreatedAt,
		ContentPreview: sum.ContentPreview,
		Hashtags:       hashtags,
		Likes:          sum.Likes,
		ReplyCount:     sum.ReplyCount,
	}
}

func resultsToResponse(results []searchuc.Result) []searchHitResponse {
	items := make([]searchHitResponse, 0, len(results))
	for _, res := range results {
		items = append(items, searchHitResponse{
			summaryResponse: summaryToResponse(res.Summary),
			Score:           res.Score,
			Similarity:      res.Similarity,
		})
	}
	return items
}

func pagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return offset, limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrPostNotFound,
		domain.ErrUnknownParent,
		domain.ErrForbiddenAppend,
		domain.ErrNotAdmitted,
		domain.ErrThrottled,
		domain.ErrVectorDimMismatch,
		domain.ErrContentEmpty,
		domain.ErrContentTooLong,
		domain.ErrMalformedAlgorithm,
		domain.ErrAlgorithmNotFound,
		domain.ErrAlgorithmOwned,
		domain.ErrIdentityNotFound,
		domain.ErrIdentityExists,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
