package www

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"washfleet/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}
	h.ensureDefaultAdmin(eng.DB())

	webCfg := eng.AppConfig().Web

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE
	r.Get("/events", hub.SSEHandler)

	// Session management
	r.Post("/api/login", h.handleLogin)
	r.Post("/api/logout", h.handleLogout)

	// Robot telemetry exchange: polled at ~1 Hz per robot, so it is neither
	// rate limited nor cached.
	r.Post("/api/robot/exchange", h.handleRobotExchange)

	// Customer boundary and public reads.
	r.Group(func(r chi.Router) {
		r.Use(rateLimit(rate.Limit(webCfg.RateLimitPerSec), webCfg.RateLimitBurst))

		r.Post("/api/requests", h.apiCreateRequest)
		r.Post("/api/requests/{id}/load", h.apiConfirmLoad)
		r.Post("/api/requests/{id}/unload", h.apiConfirmUnload)
		r.Get("/api/health", h.apiHealth)

		r.Group(func(r chi.Router) {
			r.Use(cacheResponses(cache.New(webCfg.CacheTTL, time.Minute), webCfg.CacheTTL))
			r.Get("/api/requests", h.apiListRequests)
			r.Get("/api/requests/{id}", h.apiGetRequest)
			r.Get("/api/requests/{id}/history", h.apiRequestHistory)
			r.Get("/api/robots", h.apiListRobots)
			r.Get("/api/rooms", h.apiListRooms)
			r.Get("/api/beacons", h.apiListBeacons)
		})
	})

	// Operator mutations.
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/requests/{id}/accept", h.apiAcceptRequest)
		r.Post("/api/requests/{id}/decline", h.apiDeclineRequest)
		r.Post("/api/requests/{id}/cancel", h.apiCancelRequest)
		r.Post("/api/requests/{id}/assign", h.apiAssignRobot)
		r.Post("/api/requests/{id}/mark-wash-done", h.apiMarkWashDone)
		r.Post("/api/requests/{id}/start-delivery", h.apiStartDelivery)
		r.Post("/api/requests/{id}/complete", h.apiCompleteRequest)

		r.Post("/api/robots/{name}/force-stop", h.apiForceStop)
		r.Post("/api/robots/{name}/clear-emergency-stop", h.apiClearEmergencyStop)
		r.Post("/api/robots/{name}/navigate", h.apiNavigate)
		r.Post("/api/robots/{name}/clear-navigation", h.apiClearNavigation)
		r.Post("/api/robots/{name}/accept-requests", h.apiSetAcceptRequests)
		r.Post("/api/robots/{name}/maintenance", h.apiSetMaintenance)

		r.Post("/api/rooms", h.apiUpsertRoom)
		r.Delete("/api/rooms/{name}", h.apiDeleteRoom)
		r.Post("/api/beacons", h.apiUpsertBeacon)
		r.Delete("/api/beacons/{mac}", h.apiDeleteBeacon)
	})

	stopFn := func() {
		hub.Stop()
	}
	return r, stopFn
}
