package server

import (
	"context"
	"jewelry-checkout/internal/config"
	"jewelry-checkout/internal/dto"
	"jewelry-checkout/internal/handler"
	appmw "jewelry-checkout/internal/middleware"
	"jewelry-checkout/internal/service"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Server struct {
	echo           *echo.Echo
	cfg            *config.Config
	log            *zap.Logger
	orderHandler   *handler.OrderHandler
	phonePeHandler *handler.PhonePeHandler
	productHandler *handler.ProductHandler
}

func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	orderService service.OrderService,
	paymentService service.PaymentService,
	productService service.ProductService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				log.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		cfg:            cfg,
		log:            log,
		orderHandler:   handler.NewOrderHandler(orderService, paymentService, log),
		phonePeHandler: handler.NewPhonePeHandler(orderService, paymentService, log),
		productHandler: handler.NewProductHandler(productService, log),
	}

	s.setupRoutes()
	return s
}

// rateLimit throttles per client IP. A zero limit disables it.
func (s *Server) rateLimit() echo.MiddlewareFunc {
	if s.cfg.HTTP.RateLimit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	deny := func(c echo.Context, _ string, _ error) error {
		return c.JSON(http.StatusTooManyRequests, &dto.ErrorResponse{
			Error: "rate limit exceeded",
			Code:  "RATE_LIMITED",
		})
	}
	// the extractor never fails, so there is no identifier to report
	extractFailed := func(c echo.Context, err error) error {
		return deny(c, "", err)
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.cfg.HTTP.RateLimit),
			Burst:     s.cfg.HTTP.RateBurst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: extractFailed,
		DenyHandler:  deny,
	})
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	auth := appmw.Auth(s.cfg.JWTSecret)
	optionalAuth := appmw.OptionalAuth(s.cfg.JWTSecret)
	limiter := s.rateLimit()

	api.GET("/products/:id", s.productHandler.GetProduct)
	api.GET("/products/:id/stock", s.productHandler.GetStock)

	// -------- orders --------
	orders := api.Group("/orders")
	orders.POST("", s.orderHandler.PlaceOrder, limiter, optionalAuth)
	orders.GET("", s.orderHandler.ListOrders, auth)
	orders.GET("/:id", s.orderHandler.GetOrder, optionalAuth)

	// -------- phonepe --------
	phonepe := api.Group("/payments/phonepe")
	phonepe.POST("/initiate", s.phonePeHandler.Initiate, limiter, optionalAuth)
	phonepe.GET("/status/:merchantOrderId", s.phonePeHandler.Status)

	// -------- phonepe webhooks / callbacks --------
	phonepe.POST("/webhook", s.phonePeHandler.Webhook)

	// -------- admin --------
	admin := api.Group("/admin", auth, appmw.RequireAdmin())
	admin.PATCH("/orders/:id/status", s.orderHandler.UpdateStatus)
	admin.PATCH("/orders/:id/payment-status", s.orderHandler.UpdatePaymentStatus)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
