package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/spabook/libs/auth"
	"github.com/md-rashed-zaman/spabook/libs/httpx"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

type Routes struct {
	Public    *PublicHandler
	Admin     *AdminHandler
	Login     *LoginHandler
	JWTSecret string
	// BookingLimit and LoginLimit throttle the two unauthenticated writes. Nil disables them.
	BookingLimit httpx.Middleware
	LoginLimit   httpx.Middleware
}

// Register mounts every route on mux. Admin routes require a token with the admin role.
func (rt Routes) Register(mux *http.ServeMux) {
	limited := func(m httpx.Middleware, h http.HandlerFunc) http.Handler {
		if m == nil {
			return h
		}
		return m(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return auth.RequireAuth(auth.RequireRole(h, RoleAdmin), rt.JWTSecret)
	}

	mux.HandleFunc("GET /api/services", rt.Public.ListServices)
	mux.HandleFunc("GET /api/availability", rt.Public.CheckAvailability)
	mux.HandleFunc("GET /api/availability/next", rt.Public.NextAvailable)
	mux.HandleFunc("GET /api/slots", rt.Public.DaySlots)
	mux.Handle("POST /api/bookings", limited(rt.BookingLimit, rt.Public.CreateBooking))
	mux.Handle("POST /api/admin/login", limited(rt.LoginLimit, rt.Login.Login))

	a := rt.Admin
	mux.Handle("GET /api/admin/appointments", admin(a.ListAppointments))
	mux.Handle("GET /api/admin/appointments/{id}", admin(a.GetAppointment))
	mux.Handle("PATCH /api/admin/appointments/{id}", admin(a.UpdateAppointment))
	mux.Handle("POST /api/admin/appointments/{id}/confirm", admin(a.Transition(model.StatusConfirmed)))
	mux.Handle("POST /api/admin/appointments/{id}/cancel", admin(a.Transition(model.StatusCancelled)))
	mux.Handle("POST /api/admin/appointments/{id}/complete", admin(a.Transition(model.StatusCompleted)))
	mux.Handle("GET /api/admin/appointments/{id}/audit", admin(a.ListAudit))
	mux.Handle("GET /api/admin/stats", admin(a.Stats))

	mux.Handle("GET /api/admin/hours", admin(a.GetHours))
	mux.Handle("PUT /api/admin/hours", admin(a.ReplaceHours))

	mux.Handle("GET /api/admin/blackouts", admin(a.ListBlackouts))
	mux.Handle("POST /api/admin/blackouts", admin(a.CreateBlackout))
	mux.Handle("GET /api/admin/blackouts/conflicts", admin(a.BlackoutConflicts))
	mux.Handle("GET /api/admin/blackouts/{id}", admin(a.GetBlackout))
	mux.Handle("PUT /api/admin/blackouts/{id}", admin(a.UpdateBlackout))
	mux.Handle("DELETE /api/admin/blackouts/{id}", admin(a.DeleteBlackout))
	mux.Handle("POST /api/admin/blackouts/{id}/toggle", admin(a.ToggleBlackout))

	mux.Handle("GET /api/admin/services", admin(a.ListServices))
	mux.Handle("POST /api/admin/services", admin(a.CreateService))
	mux.Handle("PATCH /api/admin/services/{id}", admin(a.UpdateService))
}
