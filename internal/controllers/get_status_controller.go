package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/skinup/internal/services"

	"github.com/gin-gonic/gin"
)

type getStatusController struct{ svc services.StatusService }

func NewGetStatusController(s services.StatusService) *getStatusController {
	return &getStatusController{svc: s}
}

func (h *getStatusController) Handle(c *gin.Context) {
	st, ok := h.svc.Snapshot()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run in progress"})
		return
	}
	c.JSON(http.StatusOK, st)
}
