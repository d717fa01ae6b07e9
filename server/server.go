package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log/v2"
	"github.com/rs/cors"
	"golang.org/x/xerrors"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/engine"
)

var log = logging.Logger("server")

var (
	errMissingAuth      = xerrors.New("missing authentication headers")
	errBadAuthSignature = xerrors.New("invalid request signature")
)

// HealthChecker probes one backing service for the health endpoint.
type HealthChecker func(ctx context.Context) error

// Server is the coordinator's REST surface.
type Server struct {
	registry    *engine.Registry
	coordinator *engine.Coordinator
	identities  *engine.IdentityStore
	verifier    chain.Verifier
	stats       *engine.Stats
	checkers    map[string]HealthChecker
}

func NewServer(registry *engine.Registry, coordinator *engine.Coordinator, identities *engine.IdentityStore, verifier chain.Verifier, stats *engine.Stats, checkers map[string]HealthChecker) *Server {
	return &Server{
		registry:    registry,
		coordinator: coordinator,
		identities:  identities,
		verifier:    verifier,
		stats:       stats,
		checkers:    checkers,
	}
}

// Router builds the mux router with all coordinator routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	r.HandleFunc("/identity", s.handleRegisterIdentity).Methods(http.MethodPost)

	r.HandleFunc("/multisig", s.handleCreateMultisig).Methods(http.MethodPost)
	r.HandleFunc("/multisig/{address}", s.handleGetMultisig).Methods(http.MethodGet)
	r.HandleFunc("/multisig/{address}/accept", s.handleAcceptMultisig).Methods(http.MethodPost)

	r.HandleFunc("/proposals", s.handleCreateProposal).Methods(http.MethodPost)
	r.HandleFunc("/proposals", s.handleListProposals).Methods(http.MethodGet)
	r.HandleFunc("/proposals/{id:[0-9]+}/vote", s.handleVote).Methods(http.MethodPost)
	r.HandleFunc("/proposals/{id:[0-9]+}/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/proposals/{id:[0-9]+}/verify", s.handleVerify).Methods(http.MethodPost)
	r.HandleFunc("/verify/{digest}", s.handleVerifyByDigest).Methods(http.MethodPost)

	return r
}

// NewHTTPServer wraps the router with CORS and timeouts.
func (s *Server) NewHTTPServer(listenAddr string) *http.Server {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
			http.MethodHead,
		},
	})

	return &http.Server{
		Addr:         listenAddr,
		Handler:      c.Handler(s.Router()),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range s.checkers {
		if err := check(ctx); err != nil {
			log.Warnw("health check failed", "service", name, "err", err)
			status[name] = err.Error()
			healthy = false
		} else {
			status[name] = "ok"
		}
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}
