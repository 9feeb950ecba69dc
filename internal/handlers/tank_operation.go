package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateTankOperation corrects and stores a gauged operation. The owning
// day's draft is opened or recomputed; a closed day answers 409.
func CreateTankOperation(c *gin.Context) {
	var request TankOperationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := lifecycle.CreateOperation(c.Request.Context(), actorFrom(c), request.ToModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, op)
}

// GetTankOperation returns an operation by ID
func GetTankOperation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	op, err := lifecycle.Store().GetOperation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

// UpdateTankOperation replaces the raw fields of an operation
func UpdateTankOperation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var request TankOperationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := lifecycle.UpdateOperation(c.Request.Context(), actorFrom(c), id, request.ToModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

// DeleteTankOperation removes an operation of an open day
func DeleteTankOperation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := lifecycle.DeleteOperation(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}
