package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"court-booking-server/middleware"
	"court-booking-server/payments"
	"court-booking-server/services"
	"court-booking-server/store"
	ws "court-booking-server/websocket"
)

// API holds the collaborators every handler needs.
type API struct {
	Bookings *services.BookingService
	Invoices *services.InvoiceService
	Auth     *services.AuthService
	Courts   store.Courts
	Users    store.Users
	VNPay    *payments.VNPay
	Hub      *ws.Hub
	Upgrader gorillaws.Upgrader
	Limiter  *middleware.RateLimiter
	Origins  []string
	Log      *logrus.Logger
}

// NewRouter builds the engine with the middleware stack and every route.
func NewRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Disable automatic redirects for trailing slashes
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(middleware.AuditLogMiddleware(api.Log))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(api.Origins))
	router.Use(middleware.InputValidationMiddleware())
	router.Use(middleware.RateLimitMiddleware(api.Limiter, api.Log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Court booking server is running",
			"time":    time.Now().UTC(),
		})
	})

	v1 := router.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.POST("/register", middleware.AuthRateLimitMiddleware(api.Limiter, api.Log), api.register)
	authRoutes.POST("/login", middleware.AuthRateLimitMiddleware(api.Limiter, api.Log), api.login)
	authRoutes.GET("/me", middleware.AuthMiddleware(api.Users), api.me)

	courts := v1.Group("/courts")
	courts.GET("", api.listCourts)
	courts.GET("/:id", api.getCourt)
	courts.GET("/:id/availability", api.courtAvailability)
	courts.GET("/:id/quote", api.courtQuote)

	// The gateway calls these without a user token.
	v1.GET("/payments/vnpay/return", api.vnpayReturn)
	v1.GET("/payments/vnpay/ipn", api.vnpayIPN)

	v1.GET("/ws", middleware.WebSocketAuthMiddleware(api.Users), api.serveWS)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(api.Users))
	registerBookingRoutes(protected.Group("/bookings"), api)
	protected.POST("/payments/vnpay/create", api.vnpayCreate)

	admin := v1.Group("/admin")
	admin.Use(middleware.AuthMiddleware(api.Users), middleware.RequireAdmin())
	registerAdminRoutes(admin, api)

	return router
}

func registerBookingRoutes(r *gin.RouterGroup, api *API) {
	r.POST("", api.createBooking)
	r.GET("/me", api.myBookings)
	r.GET("/:id", api.getBooking)
	r.POST("/:id/cancel", api.cancelBooking)
	r.GET("/:id/items", api.bookingItems)
	r.GET("/:id/invoice", api.bookingInvoice)
}

func registerAdminRoutes(r *gin.RouterGroup, api *API) {
	r.GET("/dashboard", api.dashboard)

	b := r.Group("/bookings")
	b.GET("", api.listBookings)
	b.POST("", api.createBooking)
	b.GET("/:id", api.getBooking)
	b.DELETE("/:id", api.deleteBooking)
	b.POST("/:id/confirm", api.confirmBooking)
	b.POST("/:id/cancel", api.cancelBooking)
	b.POST("/:id/checkin", api.checkinBooking)
	b.POST("/:id/complete", api.completeBooking)
	b.POST("/:id/refund", api.refundBooking)
	b.POST("/:id/no-show", api.noShowBooking)
	b.POST("/:id/notes", api.addNote)
	b.PATCH("/:id/payment-status", api.updatePaymentStatus)
	b.GET("/:id/items", api.bookingItems)
	b.PUT("/:id/items", api.upsertItems)
	b.GET("/:id/invoice", api.bookingInvoice)
	b.POST("/:id/invoice", api.issueInvoice)

	inv := r.Group("/invoices")
	inv.GET("", api.listInvoices)
	inv.GET("/:id", api.getInvoice)
	inv.PATCH("/:id/status", api.updateInvoiceStatus)
}
