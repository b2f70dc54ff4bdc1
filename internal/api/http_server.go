package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"learnhub/internal/config"
	"learnhub/internal/domain"

	"github.com/rs/zerolog"
)

// Services are the use cases the HTTP API exposes.
type Services struct {
	Slots    domain.SlotService
	Bookings domain.BookingService
	Pricing  domain.PricingService
	Orders   domain.OrderService
	Catalog  domain.CatalogService
	// Health reports whether dependencies are reachable. Optional.
	Health func(ctx context.Context) error
}

// HTTPServer exposes the booking, pricing and order API.
type HTTPServer struct {
	cfg       config.APIConfig
	svc       Services
	exportDir string
	server    *http.Server
	auth      *HTTPAuth
	now       func() time.Time
	log       zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, exports config.ExportConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:       cfg,
		svc:       svc,
		exportDir: exports.Path,
		auth:      NewHTTPAuth(cfg, nil),
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	handler := requestIDMiddleware(loggingMiddleware(srv.log, identityMiddleware(cfg.JWT, srv.auth.Wrap(mux))))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+healthPath, s.handleHealth)

	s.handle(mux, "GET /api/v1/slots", PermReadCatalog, s.handleListSlots)
	s.handle(mux, "GET /api/v1/slots/{id}", PermReadCatalog, s.handleGetSlot)
	s.handle(mux, "POST /api/v1/slots/{id}/bookings", PermWriteBookings, s.handleCreateBooking)
	s.handle(mux, "GET /api/v1/bookings", PermWriteBookings, s.handleMyBookings)
	s.handle(mux, "GET /api/v1/bookings/{id}/link", PermWriteBookings, s.handleBookingLink)
	s.handle(mux, "GET /api/v1/items", PermReadCatalog, s.handleListItems)
	s.handle(mux, "GET /api/v1/items/{type}/{id}/price", PermReadCatalog, s.handleItemPrice)
	s.handle(mux, "POST /api/v1/orders", PermWriteOrders, s.handleCheckout)
	s.handle(mux, "GET /api/v1/orders", PermWriteOrders, s.handleMyOrders)

	s.handle(mux, "POST /api/v1/admin/slots", PermAdmin, s.handleCreateSlot)
	s.handle(mux, "PUT /api/v1/admin/slots/{id}", PermAdmin, s.handleUpdateSlot)
	s.handle(mux, "DELETE /api/v1/admin/slots/{id}", PermAdmin, s.handleDeactivateSlot)
	s.handle(mux, "PUT /api/v1/admin/slots/{id}/sort-order", PermAdmin, s.handleReorderSlot)
	s.handle(mux, "GET /api/v1/admin/slots/{id}/bookings", PermAdmin, s.handleSlotBookings)
	s.handle(mux, "GET /api/v1/admin/bookings", PermAdmin, s.handleListBookings)
	s.handle(mux, "GET /api/v1/admin/bookings/export", PermAdmin, s.handleExportBookings)
	s.handle(mux, "PATCH /api/v1/admin/bookings/{id}/status", PermAdmin, s.handleBookingStatus)
	s.handle(mux, "PUT /api/v1/admin/items", PermAdmin, s.handleUpsertItem)
	s.handle(mux, "POST /api/v1/admin/flash-sales", PermAdmin, s.handleCreateFlashSale)
	s.handle(mux, "POST /api/v1/admin/flash-sales/{id}/activate", PermAdmin, s.handleActivateFlashSale)
	s.handle(mux, "POST /api/v1/admin/flash-sales/{id}/deactivate", PermAdmin, s.handleDeactivateFlashSale)
	s.handle(mux, "GET /api/v1/admin/orders", PermAdmin, s.handleListOrders)
}

func (s *HTTPServer) handle(mux *http.ServeMux, pattern, perm string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, instrument(pattern, s.auth.Require(perm, h)))
}

// Handler is the fully wrapped handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
