package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"staybook/internal/auth"
	"staybook/internal/domain"
	"staybook/internal/export"
	"staybook/internal/models"
	"staybook/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reservationResponse struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	AccommodationID int64  `json:"accommodation_id"`
	RoomID          int64  `json:"room_id"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	Status          string `json:"status"`
}

type reservationViewResponse struct {
	reservationResponse
	RoomType        string `json:"room_type"`
	RoomImage       string `json:"room_image"`
	RoomDescription string `json:"room_description"`
	RoomPrice       int64  `json:"room_price"`
}

type bookedRangeResponse struct {
	ReservationID int64  `json:"reservation_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
}

type cancelResponse struct {
	Message     string `json:"message"`
	Reservation struct {
		ID               int64  `json:"id"`
		Status           string `json:"status"`
		RoomAvailability string `json:"room_availability"`
	} `json:"reservation"`
}

func toReservationResponse(r *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		AccommodationID: r.AccommodationID,
		RoomID:          r.RoomID,
		StartDate:       r.StartDate.Format(models.DateTimeLayout),
		EndDate:         r.EndDate.Format(models.DateTimeLayout),
		Status:          r.Status,
	}
}

func toViewResponses(views []*models.ReservationView) []reservationViewResponse {
	out := make([]reservationViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, reservationViewResponse{
			reservationResponse: toReservationResponse(&v.Reservation),
			RoomType:            v.RoomType,
			RoomImage:           v.RoomImage,
			RoomDescription:     v.RoomDescription,
			RoomPrice:           v.RoomPrice,
		})
	}
	return out
}

func toBookedResponses(ranges []models.BookedRange) []bookedRangeResponse {
	out := make([]bookedRangeResponse, 0, len(ranges))
	for _, br := range ranges {
		out = append(out, bookedRangeResponse{
			ReservationID: br.ReservationID,
			StartDate:     br.StartDate.Format(models.DateTimeLayout),
			EndDate:       br.EndDate.Format(models.DateTimeLayout),
			Status:        br.Status,
		})
	}
	return out
}

func toCancelResponse(res *models.CancelResult) cancelResponse {
	var out cancelResponse
	out.Message = "Reservation canceled successfully!"
	out.Reservation.ID = res.Reservation.ID
	out.Reservation.Status = res.Reservation.Status
	out.Reservation.RoomAvailability = res.RoomAvailability
	return out
}

// decodeBody reads a JSON object into dst. Malformed or mistyped input is
// unprocessable.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "availability" {
			return domain.Unprocessable("Availability must be a boolean value!")
		}
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domain.Unprocessable(fmt.Sprintf("%s has invalid type", typeErr.Field))
		}
		if errors.Is(err, io.EOF) {
			return domain.Unprocessable("request body is required")
		}
		return domain.Unprocessable("invalid JSON body")
	}
	return nil
}

// pathID parses the {id} wildcard; a non-numeric id names nothing.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrNotFound, r.PathValue("id"))
	}
	return id, nil
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var in service.CreateReservationInput
	if err := decodeBody(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.svc.Reservations.Create(r.Context(), caller, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	views, err := s.svc.Reservations.List(r.Context(), caller)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewResponses(views))
}

func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.svc.Reservations.Cancel(r.Context(), caller, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCancelResponse(res))
}

func (s *HTTPServer) handleBookedDates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ranges, err := s.svc.Reservations.BookedDates(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookedResponses(ranges))
}

func (s *HTTPServer) handleExportReservations(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !auth.Allow(caller.Role, auth.ActionExport, false) {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	views, err := s.svc.Reservations.ListAll(r.Context(), caller)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="reservations_%s.xlsx"`, time.Now().UTC().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, views); err != nil {
		s.log.Error().Err(err).Msg("xlsx export failed")
	}
}

func (s *HTTPServer) handleListAccommodations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Inventory.ListAccommodations(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Accommodation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleCreateAccommodation(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in service.AccommodationInput
	if err := decodeBody(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	a, err := s.svc.Inventory.CreateAccommodation(r.Context(), caller, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *HTTPServer) handleGetAccommodation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	a, err := s.svc.Inventory.GetAccommodation(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *HTTPServer) handleUpdateAccommodation(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in service.AccommodationInput
	if err := decodeBody(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	a, err := s.svc.Inventory.UpdateAccommodation(r.Context(), caller, id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *HTTPServer) handleDeleteAccommodation(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.svc.Inventory.DeleteAccommodation(r.Context(), caller, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Accommodation and its associated rooms have been deleted successfully!"})
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	var accommodationID int64
	if raw := r.URL.Query().Get("accommodation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "accommodation_id must be a number")
			return
		}
		accommodationID = id
	}

	rooms, err := s.svc.Inventory.ListRooms(r.Context(), accommodationID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []*models.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in service.RoomInput
	if err := decodeBody(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	room, err := s.svc.Inventory.CreateRoom(r.Context(), caller, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	room, err := s.svc.Inventory.GetRoom(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in service.RoomInput
	if err := decodeBody(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	room, err := s.svc.Inventory.UpdateRoom(r.Context(), caller, id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.svc.Inventory.DeleteRoom(r.Context(), caller, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "room deleted successfully!"})
}
