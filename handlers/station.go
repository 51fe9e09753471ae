package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/models"
)

type StationHandler struct {
	DB *gorm.DB
}

// ListStations returns active stations with their coordinates so clients
// can render a map and pick a swap location.
func (h *StationHandler) ListStations(c *gin.Context) {
	var stations []models.Station
	if err := h.DB.Where("active = ?", true).Find(&stations).Error; err != nil {
		respondError(c, apperr.Internal("failed to load stations", err))
		return
	}
	respondOK(c, stations, "")
}

// ListSlots returns a station's bays with the battery each one holds, the
// view a driver books from.
func (h *StationHandler) ListSlots(c *gin.Context) {
	stationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, apperr.Invalid("invalid_station_id", "station id must be numeric"))
		return
	}

	var slots []models.StationBatterySlot
	if err := h.DB.Preload("Battery").Where("station_id = ?", stationID).Find(&slots).Error; err != nil {
		respondError(c, apperr.Internal("failed to load slots", err))
		return
	}
	respondOK(c, slots, "")
}
