package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"attendance-service/internal/models"
	"attendance-service/internal/repository/scylla"
	"attendance-service/internal/search"
	"attendance-service/internal/service"
	"attendance-service/internal/util"
)

// ReviewSearcher serves reviewer queries over flagged check-ins. Nil when
// the search backend is down; the endpoint then answers 503.
type ReviewSearcher interface {
	SearchReviews(ctx context.Context, q search.ReviewQuery) ([]search.ReviewDocument, error)
}

// AttendanceHandler handles HTTP requests for check-in operations
type AttendanceHandler struct {
	pipeline   *service.AttendancePipeline
	attendance scylla.AttendanceRepository
	profiles   scylla.ProfileImageRepository
	reviews    ReviewSearcher
	logger     *zap.Logger
}

func NewAttendanceHandler(
	pipeline *service.AttendancePipeline,
	attendance scylla.AttendanceRepository,
	profiles scylla.ProfileImageRepository,
	reviews ReviewSearcher,
	logger *zap.Logger,
) *AttendanceHandler {
	return &AttendanceHandler{
		pipeline:   pipeline,
		attendance: attendance,
		profiles:   profiles,
		reviews:    reviews,
		logger:     logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func errorResponse(kind, message string) Response {
	return Response{
		Success: false,
		Error:   kind,
		Message: message,
	}
}

// CheckInRequest is the inbound check-in payload.
type CheckInRequest struct {
	EmployeeID         string   `json:"employee_id"`
	Photo              string   `json:"photo"` // base64
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	UseFaceRecognition bool     `json:"use_face_recognition"`
}

// EnrollImageRequest carries a reference image for biometric enrollment.
type EnrollImageRequest struct {
	Image string `json:"image"` // base64
}

// RegisterRoutes registers all attendance routes
func (h *AttendanceHandler) RegisterRoutes(router chi.Router) {
	router.Route("/attendance", func(r chi.Router) {
		r.Post("/check-in", h.CheckIn)
		r.Get("/reviews", h.SearchReviews)
		r.Get("/{employeeID}/{date}", h.GetAttendance)
		r.Put("/{employeeID}/reference-image", h.EnrollReferenceImage)
	})
}

// CheckIn runs one check-in attempt through the pipeline.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid_request", "Invalid request body"))
		return
	}
	if req.EmployeeID == "" {
		h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid_request", "employee_id is required"))
		return
	}
	if util.ContainsSuspicious(req.EmployeeID) {
		h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid_request", "employee_id contains invalid characters"))
		return
	}

	var photo []byte
	if req.Photo != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Photo)
		if err != nil {
			h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid_request", "photo is not valid base64"))
			return
		}
		photo = decoded
	}

	attempt := &models.AttendanceAttempt{
		EmployeeID:         util.SanitizeInput(req.EmployeeID),
		Timestamp:          time.Now().UTC(),
		Photo:              photo,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		UseFaceRecognition: req.UseFaceRecognition,
	}

	result, perr := h.pipeline.CheckIn(ctx, attempt)
	if perr != nil {
		h.respondWithJSON(w, statusForKind(perr.Kind), errorResponse(string(perr.Kind), perr.Message))
		return
	}

	h.respondWithJSON(w, http.StatusCreated, successResponse(result, "Attendance recorded"))
	h.logger.Info("Check-in completed via HTTP",
		util.String("employee_id", attempt.EmployeeID),
		util.String("status", result.Status),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "CheckIn"),
	)
}

// GetAttendance returns the persisted row for one employee and date.
func (h *AttendanceHandler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID := chi.URLParam(r, "employeeID")
	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid_request", "date must be YYYY-MM-DD"))
		return
	}

	row, err := h.attendance.GetForDate(ctx, employeeID, date)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			h.respondWithJSON(w, http.StatusNotFound, errorResponse("not_found", "No attendance recorded for this date"))
			return
		}
		h.respondWithJSON(w, http.StatusInternalServerError, errorResponse("system_error", "Failed to read attendance"))
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(row, "Attendance retrieved"))
}

// SearchReviews lets reviewers query flagged or approval-pending check-ins.
func (h *AttendanceHandler) SearchReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.reviews == nil {
		h.respondWithJSON(w, http.StatusServiceUnavailable, errorResponse("search_unavailable", "Review search backend is not available"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid_request", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	query := search.ReviewQuery{
		EmployeeID: r.URL.Query().Get("employee_id"),
		RiskLevel:  r.URL.Query().Get("risk_level"),
		Department: r.URL.Query().Get("department"),
		Limit:      limit,
	}

	docs, err := h.reviews.SearchReviews(ctx, query)
	if err != nil {
		h.logger.Error("Review search failed", util.ErrorField(err))
		h.respondWithJSON(w, http.StatusInternalServerError, errorResponse("system_error", "Review search failed"))
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(docs, "Reviews retrieved"))
}

// EnrollReferenceImage stores the biometric reference image for an employee.
func (h *AttendanceHandler) EnrollReferenceImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID := chi.URLParam(r, "employeeID")

	var req EnrollImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid_request", "Invalid request body"))
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil || len(image) == 0 {
		h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid_request", "image must be non-empty base64"))
		return
	}

	if err := h.profiles.PutReferenceImage(ctx, employeeID, image); err != nil {
		h.respondWithJSON(w, http.StatusInternalServerError, errorResponse("system_error", "Failed to store reference image"))
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Reference image enrolled"))
	h.logger.Info("Reference image enrolled via HTTP",
		util.String("employee_id", employeeID),
		util.Int("image_bytes", len(image)),
	)
}

// respondWithJSON sends a JSON response
func (h *AttendanceHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// statusForKind maps a pipeline failure kind to an HTTP status code.
func statusForKind(kind service.FailureKind) int {
	switch kind {
	case service.FailEmployeeNotFound:
		return http.StatusNotFound
	case service.FailEmployeeInactive:
		return http.StatusForbidden
	case service.FailAlreadyMarked:
		return http.StatusConflict
	case service.FailPhotoRequired,
		service.FailLocationRequired,
		service.FailLocationRequiredOffice:
		return http.StatusBadRequest
	case service.FailProfileImageMissing,
		service.FailFaceMismatch,
		service.FailFaceRecognition,
		service.FailLocationTooFar,
		service.FailSecurityValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
