package app

import (
	"github.com/osvaldoandrade/skinup/internal/controllers"
	"github.com/osvaldoandrade/skinup/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	app.Engine.Use(middleware.RequestIDMiddleware(), middleware.AccessLogMiddleware(app.Logger), middleware.TracingMiddleware())

	app.Engine.GET("/healthz", controllers.HealthHandler)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := app.Engine.Group("/v1/skinup")
	{
		v1.GET("/status", controllers.NewGetStatusController(app.Status).Handle)
	}
}
