package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"confreg/internal/delivery/http/controllers"
	"confreg/internal/delivery/http/middleware"
	"confreg/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	authController *controllers.AuthController,
	feeController *controllers.FeeController,
	registrationController *controllers.RegistrationController,
	eventController *controllers.EventController,
	tokenVerifier domain.TokenVerifier,
) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(tokenVerifier)

	// Auth
	mux.HandleFunc("POST /auth/signup", authController.SignUp)
	mux.HandleFunc("POST /auth/login", authController.Login)

	// Fees
	mux.HandleFunc("POST /fees/calculate", feeController.CalculateFees)

	// Events
	mux.HandleFunc("GET /events", eventController.List)
	mux.HandleFunc("POST /events/eligibility", auth(eventController.Eligibility))
	mux.HandleFunc("GET /events/mine", auth(eventController.MyEvents))
	mux.HandleFunc("GET /events/{code}", eventController.Get)

	// Registrations
	mux.HandleFunc("POST /registrations", auth(registrationController.Create))
	mux.HandleFunc("GET /registrations/me", auth(registrationController.GetMine))
	mux.HandleFunc("POST /registrations/additional/quote", auth(registrationController.QuoteAdditional))
	mux.HandleFunc("POST /registrations/additional", auth(registrationController.CreateAdditional))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
