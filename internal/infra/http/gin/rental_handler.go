package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentbook/internal/app/booking"
	"rentbook/internal/app/dto"
	rentalsapp "rentbook/internal/app/handlers/rentals"
	"rentbook/internal/domain/shared/daterange"
)

type RentalHandler struct {
	Service *booking.Service
	Logger  *slog.Logger
}

type createRentalRequest struct {
	ItemID    string `json:"item_id" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

type extendRentalRequest struct {
	NewEndDate string `json:"new_end_date" binding:"required"`
}

type cancelRentalRequest struct {
	Reason string `json:"reason"`
}

func (h RentalHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, errStart := daterange.Parse(req.StartDate)
	end, errEnd := daterange.Parse(req.EndDate)
	if errStart != nil || errEnd != nil {
		badRequest(c, errMalformedDate)
		return
	}
	result, err := h.Service.CreateRental(c.Request.Context(), rentalsapp.CreateRentalCommand{
		RenterID:        user.ID,
		ItemID:          req.ItemID,
		Start:           start,
		End:             end,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h RentalHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := h.Service.GetRental(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h RentalHandler) Accept(c *gin.Context) {
	h.transition(c, func(c *gin.Context, userID string) (*dto.Rental, error) {
		return h.Service.AcceptRental(c.Request.Context(), c.Param("id"), userID)
	})
}

func (h RentalHandler) Confirm(c *gin.Context) {
	h.transition(c, func(c *gin.Context, userID string) (*dto.Rental, error) {
		return h.Service.ConfirmRental(c.Request.Context(), rentalsapp.ConfirmRentalCommand{
			RentalID:        c.Param("id"),
			RenterID:        userID,
			IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
		})
	})
}

func (h RentalHandler) Extend(c *gin.Context) {
	var req extendRentalRequest
	h.transition(c, func(c *gin.Context, userID string) (*dto.Rental, error) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, errBadRequest{err}
		}
		newEnd, err := daterange.Parse(req.NewEndDate)
		if err != nil {
			return nil, errBadRequest{errMalformedDate}
		}
		return h.Service.ExtendRental(c.Request.Context(), rentalsapp.ExtendRentalCommand{
			RentalID:        c.Param("id"),
			Actor:           userID,
			NewEnd:          newEnd,
			IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
		})
	})
}

func (h RentalHandler) Cancel(c *gin.Context) {
	var req cancelRentalRequest
	h.transition(c, func(c *gin.Context, userID string) (*dto.Rental, error) {
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				return nil, errBadRequest{err}
			}
		}
		return h.Service.CancelRental(c.Request.Context(), rentalsapp.CancelRentalCommand{
			RentalID:        c.Param("id"),
			Actor:           userID,
			Reason:          req.Reason,
			IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
		})
	})
}

func (h RentalHandler) PickUp(c *gin.Context) {
	h.transition(c, func(c *gin.Context, userID string) (*dto.Rental, error) {
		return h.Service.PickUpRental(c.Request.Context(), c.Param("id"), userID)
	})
}

func (h RentalHandler) Return(c *gin.Context) {
	h.transition(c, func(c *gin.Context, userID string) (*dto.Rental, error) {
		return h.Service.ReturnRental(c.Request.Context(), c.Param("id"), userID)
	})
}

func (h RentalHandler) Dispute(c *gin.Context) {
	h.transition(c, func(c *gin.Context, userID string) (*dto.Rental, error) {
		return h.Service.DisputeRental(c.Request.Context(), c.Param("id"), userID)
	})
}

func (h RentalHandler) ListMine(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := h.Service.ListRenterRentals(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h RentalHandler) ListOwned(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := h.Service.ListOwnerRentals(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }

func (h RentalHandler) transition(c *gin.Context, run func(c *gin.Context, userID string) (*dto.Rental, error)) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := run(c, user.ID)
	if bad, isBad := err.(errBadRequest); isBad {
		badRequest(c, bad.err)
		return
	}
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ RentalsHTTP = RentalHandler{}
