package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	corebooking "github.com/venuepass/venuepass/internal/booking"
	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/hierarchy"
	redisrepo "github.com/venuepass/venuepass/internal/repository/redis"
	"github.com/venuepass/venuepass/internal/service"
	bookingsvc "github.com/venuepass/venuepass/internal/service/booking"
	hierarchysvc "github.com/venuepass/venuepass/internal/service/hierarchy"
	reportsvc "github.com/venuepass/venuepass/internal/service/report"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Hierarchy editing
	r.POST("/venues", handleCreateVenue(svcs))
	r.GET("/venues/:id/hierarchy", handleGetHierarchy(svcs))
	r.PUT("/venues/:id/hierarchy", handleSaveHierarchy(svcs))
	r.POST("/venues/:id/hierarchy/validate", handleValidateHierarchy(svcs))
	r.GET("/venues/:id/availability", handleGetAvailability(svcs))

	// Bookings
	r.POST("/bookings", handleCreateBooking(svcs, idem))
	r.GET("/bookings/:id", handleGetBooking(svcs))
	r.DELETE("/bookings/:id", handleCancelBooking(svcs))

	// Reports
	r.GET("/events/:id/reports/person", handleReportByPerson(svcs))
	r.GET("/events/:id/reports/summary", handleEventSummary(svcs))

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Create venue
// @Param    req body  CreateVenueRequest true "payload"
// @Success  201 {object} CreateVenueResponse
// @Failure  409 {object} ErrorResponse
// @Router   /venues [post]
func handleCreateVenue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateVenueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Hierarchy.CreateVenue(c.Request.Context(), req.Name)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateVenueResponse{VenueID: id})
	}
}

// @Summary  Get venue hierarchy
// @Param    id  path  int  true  "Venue ID"
// @Success  200  {object}  domain.Hierarchy
// @Failure  404  {object}  ErrorResponse
// @Router   /venues/{id}/hierarchy [get]
func handleGetHierarchy(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		h, err := svcs.Hierarchy.Fetch(c.Request.Context(), venueID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 30s
		writeJSONWithCache(c, http.StatusOK, h, "public, max-age=30", true)
	}
}

// @Summary  Replace venue hierarchy
// @Description Validates the draft and persists it wholesale. The response
// @Description is the canonical tree with server-assigned ids; the client
// @Description must replace its local draft with it.
// @Param    id   path  int  true  "Venue ID"
// @Param    req  body  HierarchyDocument true "draft tree"
// @Success  200  {object}  domain.Hierarchy
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "concurrent modification"
// @Failure  422  {object}  ValidationErrorResponse
// @Router   /venues/{id}/hierarchy [put]
func handleSaveHierarchy(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var doc HierarchyDocument
		if err := c.ShouldBindJSON(&doc); err != nil {
			badRequest(c, err.Error())
			return
		}
		saved, err := svcs.Hierarchy.Replace(c.Request.Context(), doc.toDomain(venueID))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}

// @Summary  Validate venue hierarchy (dry run)
// @Param    id   path  int  true  "Venue ID"
// @Param    req  body  HierarchyDocument true "draft tree"
// @Success  200  {object}  ValidationErrorResponse "violations may be empty"
// @Router   /venues/{id}/hierarchy/validate [post]
func handleValidateHierarchy(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var doc HierarchyDocument
		if err := c.ShouldBindJSON(&doc); err != nil {
			badRequest(c, err.Error())
			return
		}
		v := svcs.Hierarchy.Validate(doc.toDomain(venueID))
		c.JSON(http.StatusOK, ValidationErrorResponse{Violations: v})
	}
}

// @Summary  Get venue availability
// @Param    id  path  int  true  "Venue ID"
// @Success  200  {object}  domain.VenueAvailability
// @Router   /venues/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		av, err := svcs.Hierarchy.Availability(c.Request.Context(), venueID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, av, "public, max-age=15", true)
	}
}

// @Summary  Create booking (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.Booking
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "subcategory unknown"
// @Failure  409 {object} CapacityErrorResponse "insufficient capacity / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(req.EventID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		b, err := svcs.Booking.Create(
			c.Request.Context(),
			req.SubcategoryID,
			corebooking.Request{
				EventID:        req.EventID,
				GuestName:      req.GuestName,
				SeatsRequested: req.Seats,
				Reference: domain.Reference{
					Name:    req.Reference.Name,
					Age:     req.Reference.Age,
					Gender:  req.Reference.Gender,
					Contact: req.Reference.Contact,
				},
				Department:    req.Department,
				SubDepartment: req.SubDepartment,
			},
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			var rlErr bookingsvc.RateLimitedError
			if errors.As(err, &rlErr) {
				retry := int(rlErr.RetryAfter / time.Second)
				if retry < 1 {
					retry = 1
				}
				c.Header("Retry-After", strconv.Itoa(retry))
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: "rate limited"},
				)
				return
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" && idem != nil {
			payload, _ := json.Marshal(b)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(payload))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, b)
	}
}

// @Summary  Get booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid booking id")
			return
		}
		b, err := svcs.Booking.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking
// @Description Voids a confirmed booking and returns its seats to the
// @Description subcategory's booked counter.
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [delete]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid booking id")
			return
		}
		if err := svcs.Booking.Cancel(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Bookings summary for one reference person
// @Param    id    path   int     true  "Event ID"
// @Param    name  query  string  true  "person name"
// @Success  200 {object} domain.PersonBookingSummary
// @Router   /events/{id}/reports/person [get]
func handleReportByPerson(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		sum, err := svcs.Report.ByPerson(c.Request.Context(), eventID, c.Query("name"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, sum, "public, max-age=60", true)
	}
}

// @Summary  Aggregate bookings summary for an event
// @Param    id  path  int  true  "Event ID"
// @Success  200 {object} domain.EventBookingSummary
// @Router   /events/{id}/reports/summary [get]
func handleEventSummary(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		sum, err := svcs.Report.EventSummary(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, sum, "public, max-age=60", true)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var vErr *hierarchy.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:      vErr.Error(),
			Violations: vErr.Violations,
		})
		return
	}

	var capErr corebooking.InsufficientCapacityError
	if errors.As(err, &capErr) {
		c.JSON(http.StatusConflict, CapacityErrorResponse{
			Error:     capErr.Error(),
			Available: capErr.Available,
		})
		return
	}

	switch {
	// hierarchy service
	case errors.Is(err, hierarchysvc.ErrVenueNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "venue not found"})
		return
	case errors.Is(err, hierarchysvc.ErrVenueConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "venue already exists"})
		return
	case errors.Is(err, hierarchysvc.ErrVersionConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "hierarchy modified concurrently"})
		return
	case errors.Is(err, hierarchysvc.ErrSaveInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "save already in flight"})
		return
	// booking service
	case errors.Is(err, bookingsvc.ErrSubcategoryNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "subcategory not found"})
		return
	case errors.Is(err, bookingsvc.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, corebooking.ErrNoSeatsRequested):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "at least one seat must be requested"})
		return
	// report service
	case errors.Is(err, reportsvc.ErrPersonRequired):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "person name is required"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
