package internal

import (
	"net/http"

	"flashback/internal/controllers"
	"flashback/internal/providers"
)

func InitRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/sessions", http.HandlerFunc(apiController.Upload))
	routers.Get("/sessions", http.HandlerFunc(apiController.ListSessions))
	routers.Get("/sessions/{id}", http.HandlerFunc(apiController.GetSession))
	routers.Delete("/sessions/{id}", http.HandlerFunc(apiController.DeleteSession))
	routers.Post("/sessions/{id}/generate", http.HandlerFunc(apiController.Generate))
	routers.Post("/sessions/{id}/decades/{decade}/regenerate", http.HandlerFunc(apiController.Regenerate))
	routers.Get("/sessions/{id}/original", http.HandlerFunc(apiController.GetOriginal))
	routers.Get("/sessions/{id}/decades/{decade}/image", http.HandlerFunc(apiController.GetDecadeImage))
	routers.Get("/sessions/{id}/album", http.HandlerFunc(apiController.GetAlbum))
	routers.Get("/rate-limit", http.HandlerFunc(apiController.RateLimit))
	routers.Get("/decades", http.HandlerFunc(apiController.ListDecades))
	return routers
}
