package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tycoon/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Game is the session surface the HTTP layer drives.
type Game interface {
	State() *game.GameState
	Apply(tx game.Tx) (*game.GameState, error)
	Tap() (float64, *game.GameState, error)
	Momentum() game.Momentum
	Save(ctx context.Context) error
	Export() (string, error)
	Import(code string) (*game.GameState, error)
	Subscribe() (<-chan *game.GameState, func())
}

// Metrics is the slice of the recorder the API reports to.
type Metrics interface {
	Tapped()
	RateLimited()
	Handler() http.Handler
}

type Options struct {
	Logger  *slog.Logger
	Metrics Metrics
	// TapRate is the sustained taps per second allowed; bursts up to twice
	// that are let through.
	TapRate float64
}

type Server struct {
	log      *slog.Logger
	game     Game
	metrics  Metrics
	taps     *rate.Limiter
	replays  *replayCache
	upgrader websocket.Upgrader
	mux      *chi.Mux
}

func New(g Game, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tapRate := opts.TapRate
	if tapRate <= 0 {
		tapRate = 20
	}
	s := &Server{
		log:     logger,
		game:    g,
		metrics: opts.Metrics,
		taps:    rate.NewLimiter(rate.Limit(tapRate), int(tapRate*2)+1),
		replays: newReplayCache(256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		// Long-lived; must not sit behind the request timeout.
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/state", s.handleState)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/stocks", s.handleStocks)
			r.Get("/crypto", s.handleCrypto)
			r.Get("/export", s.handleExport)

			r.Post("/tap", s.handleTap)
			r.Post("/save", s.handleSave)
			r.Post("/import", s.handleImport)

			r.Group(func(r chi.Router) {
				r.Use(s.replayGuard)
				r.Post("/upgrades/{id}/buy", s.handleBuyLevels(game.BuyUpgrade))
				r.Post("/businesses/{id}/buy", s.handleBuyLevels(game.BuyBusiness))
				r.Post("/collections/{id}/buy", s.handleBuyLevels(game.BuyCollection))
				r.Post("/stocks/{ticker}/buy", s.handleStockTrade(game.BuyStock))
				r.Post("/stocks/{ticker}/sell", s.handleStockTrade(game.SellStock))
				r.Post("/stocks/liquidate", s.handleLiquidate)
				r.Post("/stocks/ipo", s.handleIPO)
				r.Post("/crypto/{id}/buy", s.handleCryptoTrade(game.BuyCrypto))
				r.Post("/crypto/{id}/sell", s.handleCryptoTrade(game.SellCrypto))
				r.Post("/realestate/{id}/buy", s.handleByID(game.BuyRealEstate))
				r.Post("/cars/{id}/buy", s.handleByID(game.BuyCar))
				r.Post("/cars/{id}/sell", s.handleByID(game.SellCar))
				r.Post("/tasks/{id}/claim", s.handleByID(game.ClaimTask))
			})
		})
	})
}

type tapResult struct {
	Payout   float64         `json:"payout"`
	Momentum float64         `json:"momentum"`
	State    *game.GameState `json:"state"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.game.State())
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, game.NewDashboard(s.game.State()))
}

func (s *Server) handleStocks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stocks": game.StockViews(s.game.State())})
}

func (s *Server) handleCrypto(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"crypto": game.CryptoViews(s.game.State())})
}

func (s *Server) handleTap(w http.ResponseWriter, _ *http.Request) {
	if !s.taps.Allow() {
		if s.metrics != nil {
			s.metrics.RateLimited()
		}
		writeError(w, http.StatusTooManyRequests, "tapping too fast")
		return
	}
	payout, state, err := s.game.Tap()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Tapped()
	}
	writeJSON(w, http.StatusOK, tapResult{
		Payout:   payout,
		Momentum: s.game.Momentum().Value,
		State:    state,
	})
}

func (s *Server) handleBuyLevels(build func(id string, max bool) game.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := queryBool(r, "max")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.apply(w, build(chi.URLParam(r, "id"), all))
	}
}

func (s *Server) handleStockTrade(build func(ticker string, amount int64) game.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Amount int64 `json:"amount"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.apply(w, build(tickerParam(r), in.Amount))
	}
}

func (s *Server) handleCryptoTrade(build func(id string, amount float64) game.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Amount float64 `json:"amount"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.apply(w, build(chi.URLParam(r, "id"), in.Amount))
	}
}

func (s *Server) handleByID(build func(id string) game.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.apply(w, build(chi.URLParam(r, "id")))
	}
}

func (s *Server) handleLiquidate(w http.ResponseWriter, _ *http.Request) {
	s.apply(w, game.LiquidateStocks())
}

func (s *Server) handleIPO(w http.ResponseWriter, r *http.Request) {
	var in game.IPOInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.applyStatus(w, http.StatusCreated, game.LaunchIPO(in))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.game.Save(r.Context()); err != nil {
		s.log.Error("save failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.game.State())
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	code, err := s.game.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": code})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.game.Import(in.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) apply(w http.ResponseWriter, tx game.Tx) {
	s.applyStatus(w, http.StatusOK, tx)
}

func (s *Server) applyStatus(w http.ResponseWriter, status int, tx game.Tx) {
	state, err := s.game.Apply(tx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, state)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInsufficientFunds),
		errors.Is(err, game.ErrInsufficientShares),
		errors.Is(err, game.ErrInsufficientSupply),
		errors.Is(err, game.ErrNothingOwned),
		errors.Is(err, game.ErrMaxLevel):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrInvalidAmount),
		errors.Is(err, game.ErrInvalidIPO),
		errors.Is(err, game.ErrTickerTooLong),
		errors.Is(err, game.ErrNameTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrTickerTaken), errors.Is(err, game.ErrNotClaimable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInvalidImport):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// tickerParam reads the {ticker} segment. chi matches on the escaped path
// when one exists, so the segment may still carry escapes.
func tickerParam(r *http.Request) string {
	raw := chi.URLParam(r, "ticker")
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return game.NormalizeTicker(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(key + " must be a boolean")
	}
	return b, nil
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}
