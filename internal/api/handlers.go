package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/domain"
	"learnhub/internal/export"
	"learnhub/internal/models"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultListRange = 30 * 24 * time.Hour
)

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	writeServiceError(w, s.log, err)
}

func (s *HTTPServer) handleListSlots(w http.ResponseWriter, r *http.Request) {
	f := models.SlotFilter{ActiveOnly: true}

	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind, err := models.ParseSlotKind(raw)
		if err != nil {
			s.fail(w, err)
			return
		}
		f.Kind = kind
	}

	var err error
	if f.From, err = queryDate(r, "from"); err != nil {
		s.fail(w, err)
		return
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		s.fail(w, err)
		return
	}

	views, err := s.svc.Slots.ListSlots(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	if views == nil {
		views = []*domain.SlotView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": views})
}

func (s *HTTPServer) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}
	view, err := s.svc.Slots.GetSlot(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}

	var req domain.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	req.SlotID = slotID

	b, err := s.svc.Bookings.CreateBooking(r.Context(), IdentityFrom(r.Context()), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListMyBookings(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func (s *HTTPServer) handleBookingLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		email = IdentityFrom(r.Context()).Email
	}
	if email == "" {
		s.fail(w, apperr.Validation("email", "is required"))
		return
	}

	st, err := s.svc.Bookings.GetLinkStatus(r.Context(), id, email, s.now())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	itemType := models.ItemType(strings.TrimSpace(r.URL.Query().Get("type")))
	items, err := s.svc.Catalog.ListItems(r.Context(), itemType)
	if err != nil {
		s.fail(w, err)
		return
	}
	if items == nil {
		items = []*models.CatalogItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleItemPrice(w http.ResponseWriter, r *http.Request) {
	itemType, err := models.ParseItemType(r.PathValue("type"))
	if err != nil {
		s.fail(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}

	item, price, err := s.svc.Pricing.PriceItem(r.Context(), models.ItemRef{Type: itemType, ID: id})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "pricing": price})
}

type checkoutRequest struct {
	Kind   string `json:"kind"`
	ItemID int64  `json:"item_id"`
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}

	order, err := s.svc.Orders.Checkout(r.Context(), IdentityFrom(r.Context()), req.Kind, req.ItemID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *HTTPServer) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	who := IdentityFrom(r.Context())
	if who.UserID == "" {
		s.fail(w, apperr.ErrForbidden)
		return
	}
	s.listOrders(w, r, who.UserID)
}

func (s *HTTPServer) handleListOrders(w http.ResponseWriter, r *http.Request) {
	s.listOrders(w, r, strings.TrimSpace(r.URL.Query().Get("user_id")))
}

func (s *HTTPServer) listOrders(w http.ResponseWriter, r *http.Request, userID string) {
	f := models.OrderFilter{UserID: userID}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind, err := models.ParseOrderKind(raw)
		if err != nil {
			s.fail(w, err)
			return
		}
		f.Kind = kind
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, err)
		return
	}
	f.Limit = limit

	orders, err := s.svc.Orders.ListOrders(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// slotPayload is the admin view of a slot; unlike models.Slot it carries the
// meeting link and takes the date as YYYY-MM-DD.
type slotPayload struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	Capacity    *int64 `json:"capacity"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int64  `json:"sort_order"`
	MeetingLink string `json:"meeting_link"`
}

func (p slotPayload) toSlot() (*models.Slot, error) {
	date, err := models.ParseDate(p.Date)
	if err != nil {
		return nil, err
	}
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return &models.Slot{
		Kind:        models.SlotKind(p.Kind),
		Title:       strings.TrimSpace(p.Title),
		Date:        date,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Price:       p.Price,
		Currency:    p.Currency,
		Capacity:    p.Capacity,
		IsActive:    active,
		SortOrder:   p.SortOrder,
		MeetingLink: strings.TrimSpace(p.MeetingLink),
	}, nil
}

func (s *HTTPServer) decodeSlot(w http.ResponseWriter, r *http.Request) (*models.Slot, error) {
	var p slotPayload
	if err := decodeJSON(w, r, &p); err != nil {
		return nil, err
	}
	return p.toSlot()
}

func (s *HTTPServer) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := s.decodeSlot(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	view, err := s.svc.Slots.CreateSlot(r.Context(), slot)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}
	slot, err := s.decodeSlot(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	slot.ID = id

	view, err := s.svc.Slots.UpdateSlot(r.Context(), slot)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleDeactivateSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.Slots.DeactivateSlot(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleReorderSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}
	var req struct {
		SortOrder int64 `json:"sort_order"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.Slots.ReorderSlot(r.Context(), id, req.SortOrder); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSlotBookings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}
	bookings, err := s.svc.Bookings.ListSlotBookings(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

// bookingRange reads from/to, defaulting to the next 30 days.
func (s *HTTPServer) bookingRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.IsZero() {
		from, _ = models.ParseDate(s.now().UTC().Format(models.DateLayout))
	}
	if to.IsZero() {
		to = from.Add(defaultListRange)
	}
	return from, to, nil
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.bookingRange(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), from, to)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.bookingRange(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), from, to)
	if err != nil {
		s.fail(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookingsXLSX(&buf, from, to, bookings); err != nil {
		s.fail(w, err)
		return
	}

	if s.exportDir != "" {
		if path, err := export.SaveBookingsXLSX(s.exportDir, from, to, bookings); err != nil {
			s.log.Warn().Err(err).Msg("Export copy not saved")
		} else {
			s.log.Info().Str("file_path", path).Int("bookings", len(bookings)).Msg("Excel file created")
		}
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", contentDisposition(export.FileName(from, to)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}

	b, err := s.svc.Bookings.TransitionStatus(r.Context(), id, req.Status)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleUpsertItem(w http.ResponseWriter, r *http.Request) {
	var item models.CatalogItem
	if err := decodeJSON(w, r, &item); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.Catalog.UpsertItem(r.Context(), &item); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleCreateFlashSale(w http.ResponseWriter, r *http.Request) {
	var sale models.FlashSale
	if err := decodeJSON(w, r, &sale); err != nil {
		s.fail(w, err)
		return
	}
	sale.ID = 0
	if err := s.svc.Pricing.CreateFlashSale(r.Context(), &sale); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (s *HTTPServer) handleActivateFlashSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.Pricing.ActivateFlashSale(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleDeactivateFlashSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.Pricing.DeactivateFlashSale(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(bookings []*models.BookingWithSlot) []*models.BookingWithSlot {
	if bookings == nil {
		return []*models.BookingWithSlot{}
	}
	return bookings
}
