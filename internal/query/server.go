package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairScope/internal/model"
	"pairScope/internal/projection"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Server exposes the read-only query surface over the projection store. It
// never mutates state; all writes flow through the event dispatcher.
type Server struct {
	store  projection.Store
	logger *zap.Logger
}

func NewServer(store projection.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /v1/pools", s.handleListPools)
	mux.HandleFunc("GET /v1/pools/{address}", s.handleGetPool)
	mux.HandleFunc("GET /v1/pools/{address}/activity", s.handlePoolActivity)
	return mux
}

// ListenAndServe blocks until ctx is cancelled or the server fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("query server listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid pool address")
		return
	}

	pool, err := s.store.GetPool(r.Context(), address)
	if err != nil {
		if errors.Is(err, projection.ErrUnknownPool) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		s.logger.Error("get pool failed", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	nftContract := r.URL.Query().Get("nft")
	if nftContract == "" {
		writeError(w, http.StatusBadRequest, "nft query parameter is required")
		return
	}
	if !common.IsHexAddress(nftContract) {
		writeError(w, http.StatusBadRequest, "invalid nft contract address")
		return
	}

	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pools, err := s.store.PoolsByNFTContract(r.Context(), nftContract, limit, offset)
	if err != nil {
		s.logger.Error("list pools failed", zap.String("nft", nftContract), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"pools": pools})
}

func (s *Server) handlePoolActivity(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid pool address")
		return
	}

	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Confirm the pool exists so an empty ledger and an unknown pool are
	// distinguishable.
	if _, err := s.store.GetPool(r.Context(), address); err != nil {
		if errors.Is(err, projection.ErrUnknownPool) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		s.logger.Error("get pool failed", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	records, err := s.store.PoolActivity(r.Context(), address, limit, offset)
	if err != nil {
		s.logger.Error("pool activity failed", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []*model.Activity{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": records})
}

func pagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
