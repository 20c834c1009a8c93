package routes

import (
	"github.com/gin-gonic/gin"

	"go-feature-platform/internal/api/handlers"
)

func SetupRoutes(
	router *gin.Engine,
	featureHandler *handlers.FeatureHandler,
	configHandler *handlers.ConfigHandler,
	logHandler *handlers.LogHandler,
	taskHandler *handlers.ScheduledTaskHandler,
	catalogHandler *handlers.CatalogHandler,
	streamHandler *handlers.StreamHandler,
) {
	// Health check
	router.GET("/health", featureHandler.HealthCheck)

	// Live channel (register handshake happens inside the socket)
	router.GET("/ws/feature", streamHandler.Serve)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		features := v1.Group("/features")
		{
			features.GET("", featureHandler.List)
			features.POST("/upload", featureHandler.Upload)
			features.GET("/:id", featureHandler.Get)
			features.PUT("/:id", featureHandler.Update)
			features.DELETE("/:id", featureHandler.Delete)
			features.POST("/:id/execute", featureHandler.Execute)
		}

		configs := v1.Group("/configs")
		{
			configs.GET("", configHandler.List)
			configs.POST("", configHandler.Create)
			configs.POST("/cleanup", configHandler.Cleanup)
			configs.GET("/:id", configHandler.Get)
			configs.PUT("/:id", configHandler.Update)
			configs.DELETE("/:id", configHandler.Delete)
		}

		logs := v1.Group("/logs")
		{
			logs.GET("", logHandler.List)
			logs.GET("/:request_id/details", logHandler.Details)
			logs.GET("/:request_id/state", logHandler.State)
		}

		tasks := v1.Group("/scheduled-tasks")
		{
			tasks.GET("", taskHandler.List)
			tasks.POST("", taskHandler.Create)
			tasks.GET("/:id", taskHandler.Get)
			tasks.PUT("/:id", taskHandler.Update)
			tasks.DELETE("/:id", taskHandler.Delete)
		}

		customers := v1.Group("/customers")
		{
			customers.GET("", catalogHandler.ListCustomers)
			customers.POST("", catalogHandler.CreateCustomer)
			customers.GET("/:id", catalogHandler.GetCustomer)
			customers.PUT("/:id", catalogHandler.UpdateCustomer)
			customers.DELETE("/:id", catalogHandler.DeleteCustomer)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", catalogHandler.ListCategories)
			categories.POST("", catalogHandler.CreateCategory)
			categories.GET("/:id", catalogHandler.GetCategory)
			categories.PUT("/:id", catalogHandler.UpdateCategory)
			categories.DELETE("/:id", catalogHandler.DeleteCategory)
		}

		v1.GET("/stream/clients", streamHandler.Connected)
	}
}
