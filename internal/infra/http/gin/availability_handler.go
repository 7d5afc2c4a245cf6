package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentbook/internal/app/booking"
	availabilityapp "rentbook/internal/app/handlers/availability"
	"rentbook/internal/domain/shared/daterange"
)

type AvailabilityHandler struct {
	Service *booking.Service
	Logger  *slog.Logger
}

type blockDatesRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Reason    string `json:"reason"`
	Note      string `json:"note"`
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetCalendarQuery{ItemID: c.Param("id")}
	if raw := c.Query("from"); raw != "" {
		from, err := daterange.Parse(raw)
		if err != nil {
			badRequest(c, errMalformedDate)
			return
		}
		query.From = from
	}
	if raw := c.Query("months"); raw != "" {
		months, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		query.Months = months
	}
	result, err := h.Service.GetAvailabilityCalendar(c.Request.Context(), query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	start, errStart := daterange.Parse(c.Query("start"))
	end, errEnd := daterange.Parse(c.Query("end"))
	if errStart != nil || errEnd != nil {
		badRequest(c, errMalformedDate)
		return
	}
	result, err := h.Service.CheckAvailability(c.Request.Context(), availabilityapp.CheckAvailabilityQuery{
		ItemID: c.Param("id"),
		Start:  start,
		End:    end,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Block(c *gin.Context) {
	user, req, start, end, ok := h.bindBlock(c)
	if !ok {
		return
	}
	result, err := h.Service.BlockDates(c.Request.Context(), availabilityapp.BlockDatesCommand{
		ItemID:  c.Param("id"),
		OwnerID: user.ID,
		Start:   start,
		End:     end,
		Reason:  req.Reason,
		Note:    req.Note,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Unblock(c *gin.Context) {
	user, req, start, end, ok := h.bindBlock(c)
	if !ok {
		return
	}
	result, err := h.Service.UnblockDates(c.Request.Context(), availabilityapp.UnblockDatesCommand{
		ItemID:  c.Param("id"),
		OwnerID: user.ID,
		Start:   start,
		End:     end,
		Reason:  req.Reason,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) bindBlock(c *gin.Context) (principal, blockDatesRequest, time.Time, time.Time, bool) {
	var req blockDatesRequest
	user, ok := requireUser(c)
	if !ok {
		return principal{}, req, time.Time{}, time.Time{}, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return principal{}, req, time.Time{}, time.Time{}, false
	}
	start, errStart := daterange.Parse(req.StartDate)
	end, errEnd := daterange.Parse(req.EndDate)
	if errStart != nil || errEnd != nil {
		badRequest(c, errMalformedDate)
		return principal{}, req, time.Time{}, time.Time{}, false
	}
	return user, req, start, end, true
}

var _ AvailabilityHTTP = AvailabilityHandler{}
