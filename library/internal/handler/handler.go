package handler

import (
	"net/http"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/pkg/auth"
	md "github.com/Astemirdum/library-management/pkg/middleware"
	"github.com/Astemirdum/library-management/pkg/validate"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Services struct {
	Books   BookService
	Lending LendingService
	Auth    AuthService
	Sweeper Sweeper
}

type Handler struct {
	books   BookService
	lending LendingService
	auth    AuthService
	sweeper Sweeper
	tokens  md.TokenParser
	log     *zap.Logger
}

func New(svc Services, tokens md.TokenParser, log *zap.Logger) *Handler {
	return &Handler{
		books:   svc.Books,
		lending: svc.Lending,
		auth:    svc.Auth,
		sweeper: svc.Sweeper,
		tokens:  tokens,
		log:     log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)
	authn := md.JWTAuthentication(h.tokens)
	admin := md.RequireRole(auth.RoleAdmin)

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	api.GET("/books", h.ListBooks)
	api.GET("/books/:id", h.GetBook)
	api.POST("/books", h.CreateBook, authn, admin)
	api.PUT("/books/:id", h.UpdateBook, authn, admin)
	api.DELETE("/books/:id", h.DeleteBook, authn, admin)

	loans := api.Group("/loans", authn)
	loans.POST("", h.CreateLoan)
	loans.PUT("/:id/return", h.ReturnLoan)
	loans.GET("/my-loans", h.MyLoans)

	reservations := api.Group("/reservations", authn)
	reservations.POST("", h.CreateReservation)
	reservations.DELETE("/:id/cancel", h.CancelReservation)
	reservations.POST("/:id/fulfill", h.FulfillReservation)
	reservations.GET("/my-reservations", h.MyReservations)

	api.POST("/admin/expire-reservations", h.ExpireReservations, authn, admin)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps a service error to its HTTP status.
func (h *Handler) httpError(err error) error {
	var code int
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		code = http.StatusNotFound
	case errs.KindValidation:
		code = http.StatusBadRequest
	case errs.KindConflict:
		code = http.StatusConflict
	case errs.KindForbidden:
		code = http.StatusForbidden
	case errs.KindUnauthorized:
		code = http.StatusUnauthorized
	default:
		h.log.Error("internal", zap.Error(err))
		code = http.StatusInternalServerError
	}
	return echo.NewHTTPError(code, err.Error())
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// caller returns the authenticated profile and its user id.
func caller(c echo.Context) (auth.Profile, uuid.UUID, error) {
	p, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return auth.Profile{}, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return auth.Profile{}, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	return p, id, nil
}

func bindValid(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
