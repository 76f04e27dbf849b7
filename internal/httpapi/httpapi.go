// Package httpapi serves the read-only HTTP API: live lookups against the
// node and indexed history from the SQL store.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/chainkernel/internal/apm"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/indexer"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/metrics"
	"github.com/ppiankov/chainkernel/internal/node"
)

// API wires the HTTP routes.
type API struct {
	node    *node.Node
	store   *indexer.Store
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// New creates the API. store and m may be nil; their routes then answer
// 404.
func New(n *node.Node, store *indexer.Store, m *metrics.Metrics, log *logrus.Entry) *API {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &API{node: n, store: store, metrics: m, log: log.WithField("component", "http")}
}

// Handler returns the router.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Get("/healthz", a.health)
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics.Handler())
	}
	r.Route("/v1", func(api chi.Router) {
		api.Get("/addresses", a.addresses)
		api.Get("/apps/{ns}/{id}", a.app)
		api.Get("/permissions/check", a.checkPermission)
		api.Get("/repos/{name}/latest", a.latestVersion)
		if a.store != nil {
			api.Get("/apps", a.apps)
			api.Get("/permissions", a.permissions)
			api.Get("/repos/{name}/versions", a.versions)
			api.Get("/events", a.events)
		}
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (a *API) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
		}).Debug("request")
	})
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "block": a.node.World().Block()})
}

func (a *API) addresses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.node.Addresses())
}

// kernelParam resolves ?kernel=, defaulting to the main DAO.
func (a *API) kernelParam(r *http.Request) (ident.Address, error) {
	addrs := a.node.Addresses()
	if k := r.URL.Query().Get("kernel"); k != "" {
		return addrs.Resolve(k)
	}
	return addrs.DAO, nil
}

func (a *API) app(w http.ResponseWriter, r *http.Request) {
	kernel, err := a.kernelParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_KERNEL", err.Error())
		return
	}
	ns, err := ident.ParseNamespace(chi.URLParam(r, "ns"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_NAMESPACE", err.Error())
		return
	}
	id := ident.AppIDFromString(chi.URLParam(r, "id"))

	addr, err := ledger.First[ident.Address](a.node.Query(r.Context(), ident.ZeroAddress, kernel, "getApp", ns, id))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if addr.IsZero() {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no app %s in %s", id.Short(), ident.NamespaceName(ns)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kernel":    kernel,
		"namespace": ns,
		"app_id":    id,
		"address":   addr,
	})
}

func (a *API) checkPermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	addrs := a.node.Addresses()
	entity, err := addrs.Entity(q.Get("entity"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_ENTITY", err.Error())
		return
	}
	where, err := addrs.Resolve(q.Get("app"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_APP", err.Error())
		return
	}
	if q.Get("role") == "" {
		writeError(w, r, http.StatusBadRequest, "BAD_ROLE", "role is required")
		return
	}
	role := ident.RoleID(q.Get("role"))
	kernel, err := a.kernelParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_KERNEL", err.Error())
		return
	}

	allowed, err := ledger.First[bool](a.node.Query(r.Context(), ident.ZeroAddress, kernel, "hasPermission", entity, where, role))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity":  entity,
		"app":     where,
		"role":    role,
		"allowed": allowed,
	})
}

// latestVersion resolves a repo by name through the package registry and
// returns its newest release.
func (a *API) latestVersion(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	repo, err := ledger.First[ident.Address](a.node.Query(r.Context(), ident.ZeroAddress, a.node.Addresses().APMRegistry, "getRepo", name))
	if errors.Is(err, apm.ErrNoRepo) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no repo %q", name))
		return
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	rel, err := ledger.First[apm.Release](a.node.Query(r.Context(), ident.ZeroAddress, repo, "getLatest"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"repo":        repo,
		"version_id":  rel.ID,
		"version":     rel.Version.String(),
		"contract":    rel.Contract,
		"content_uri": rel.ContentURI,
	})
}

func (a *API) apps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kernel, err := a.kernelParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_KERNEL", err.Error())
		return
	}
	var ns string
	if s := q.Get("namespace"); s != "" {
		id, err := ident.ParseNamespace(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "BAD_NAMESPACE", err.Error())
			return
		}
		ns = id.Hex()
	}
	rows, err := a.store.Apps(r.Context(), kernel.Hex(), ns)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": nonNil(rows)})
}

func (a *API) permissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	addrs := a.node.Addresses()
	pq := indexer.PermissionQuery{AllowedOnly: q.Get("allowed") == "true"}
	if s := q.Get("acl"); s != "" {
		addr, err := addrs.Resolve(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "BAD_ACL", err.Error())
			return
		}
		pq.ACL = addr.Hex()
	}
	if s := q.Get("entity"); s != "" {
		addr, err := addrs.Entity(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "BAD_ENTITY", err.Error())
			return
		}
		pq.Entity = addr.Hex()
	}
	if s := q.Get("app"); s != "" {
		addr, err := addrs.Resolve(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "BAD_APP", err.Error())
			return
		}
		pq.App = addr.Hex()
	}
	rows, err := a.store.Permissions(r.Context(), pq)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": nonNil(rows)})
}

func (a *API) versions(w http.ResponseWriter, r *http.Request) {
	repo, err := a.store.Repo(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	rows, err := a.store.Versions(r.Context(), repo.Address)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repo": repo, "versions": nonNil(rows)})
}

func (a *API) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eq := indexer.EventQuery{Name: q.Get("name"), TxID: q.Get("tx_id")}
	if s := q.Get("contract"); s != "" {
		addr, err := a.node.Addresses().Resolve(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "BAD_CONTRACT", err.Error())
			return
		}
		eq.Contract = addr.Hex()
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "BAD_LIMIT", "limit must be a positive integer")
			return
		}
		eq.Limit = n
	}
	rows, err := a.store.Events(r.Context(), eq)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": nonNil(rows)})
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
