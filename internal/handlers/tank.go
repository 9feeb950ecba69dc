package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tankcontrol/internal/models"
)

// CreateTank registers a new tank
func CreateTank(c *gin.Context) {
	var request TankRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tank := models.Tank{
		Code:        request.Code,
		Name:        request.Name,
		MaxHeightMm: request.MaxHeightMm,
		IsActive:    true,
	}
	if request.IsActive != nil {
		tank.IsActive = *request.IsActive
	}
	if err := lifecycle.CreateTank(c.Request.Context(), actorFrom(c), &tank); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tank)
}

// ListTanks returns all tanks, or only active ones with ?active=true
func ListTanks(c *gin.Context) {
	tanks, err := lifecycle.Store().ListTanks(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tanks)
}

// GetTank returns a tank by ID
func GetTank(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tank, err := lifecycle.Store().GetTank(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tank)
}
