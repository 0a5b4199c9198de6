package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/handler"
	"github.com/Astemirdum/library-management/library/internal/job"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/Astemirdum/library-management/pkg/validate"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	service_mocks "github.com/Astemirdum/library-management/library/internal/handler/mocks"
)

var (
	bookID   = uuid.MustParse("f7cdc58f-2caf-4b15-9727-f89dcc629b27")
	userID   = uuid.MustParse("83575e12-7ce0-48ee-9931-51919ff3c9ee")
	otherID  = uuid.MustParse("0b1c2d3e-4f50-4617-8293-a4b5c6d7e8f9")
	itemID   = uuid.MustParse("6a1f3c2e-9d4b-4e8a-b7c6-5d4e3f2a1b0c")
	fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type mocks struct {
	books   *service_mocks.MockBookService
	lending *service_mocks.MockLendingService
	auth    *service_mocks.MockAuthService
	sweeper *service_mocks.MockSweeper
}

func newHandler(t *testing.T) (*handler.Handler, mocks) {
	c := gomock.NewController(t)
	m := mocks{
		books:   service_mocks.NewMockBookService(c),
		lending: service_mocks.NewMockLendingService(c),
		auth:    service_mocks.NewMockAuthService(c),
		sweeper: service_mocks.NewMockSweeper(c),
	}
	h := handler.New(handler.Services{
		Books:   m.books,
		Lending: m.lending,
		Auth:    m.auth,
		Sweeper: m.sweeper,
	}, auth.NewTokens("secret", time.Hour), zap.NewExample().Named("test"))
	return h, m
}

func serve(e *echo.Echo, method, target, body string, profile *auth.Profile) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, http.NoBody)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if profile != nil {
		r = r.WithContext(auth.SetAuthContext(r.Context(), *profile))
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	return e
}

func TestHandler_GetBook(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(m mocks)

	tests := []struct {
		name         string
		id           string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			id:   bookID.String(),
			mockBehavior: func(m mocks) {
				m.books.EXPECT().GetBook(context.Background(), bookID).Return(model.Book{
					ID:              bookID,
					Title:           "Dune",
					Author:          "Frank Herbert",
					PublicationYear: 1965,
					Status:          model.BookAvailable,
					CreatedAt:       fixedNow,
					UpdatedAt:       fixedNow,
				}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","title":"Dune","author":"Frank Herbert","publicationYear":1965,"status":"available","createdAt":"2024-03-01T12:00:00Z","updatedAt":"2024-03-01T12:00:00Z"}`,
			},
		},
		{
			name:         "err. invalid id",
			id:           "42",
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid id"}`,
			},
		},
		{
			name: "err. not found",
			id:   bookID.String(),
			mockBehavior: func(m mocks) {
				m.books.EXPECT().GetBook(context.Background(), bookID).Return(model.Book{}, errs.NotFound("book not found"))
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book not found"}`,
			},
		},
		{
			name: "err. internal",
			id:   bookID.String(),
			mockBehavior: func(m mocks) {
				m.books.EXPECT().GetBook(context.Background(), bookID).Return(model.Book{}, errors.New("db internal"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"db internal"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, m := newHandler(t)
			e := newEcho()
			e.GET("/books/:id", h.GetBook)

			tt.mockBehavior(m)
			w := serve(e, http.MethodGet, "/books/"+tt.id, "", nil)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ListBooks(t *testing.T) {
	t.Parallel()
	h, m := newHandler(t)
	e := newEcho()
	e.GET("/books", h.ListBooks)

	m.books.EXPECT().
		ListBooks(context.Background(), model.ListBooksQuery{Page: 2, Limit: 5, Search: "dune", SortBy: "title", SortOrder: model.SortAsc}).
		Return(model.ListBooks{Data: []model.Book{}, Total: 6, Page: 2, TotalPages: 2}, nil)

	w := serve(e, http.MethodGet, "/books?page=2&limit=5&search=dune&sortBy=title&sortOrder=asc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"data":[],"total":6,"page":2,"totalPages":2}`, strings.Trim(w.Body.String(), "\n"))

	w = serve(e, http.MethodGet, "/books?limit=500", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(e, http.MethodGet, "/books?page=92233720368547760&limit=100", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CreateReservation(t *testing.T) {
	t.Parallel()
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	type response struct {
		expectedCode int
		expectedBody string
	}

	tests := []struct {
		name         string
		body         string
		profile      *auth.Profile
		mockBehavior func(m mocks)
		response     response
	}{
		{
			name:    "ok",
			body:    `{"bookId":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","expirationDate":"2030-01-01T00:00:00Z"}`,
			profile: &auth.Profile{UserID: userID.String(), Role: auth.RoleUser},
			mockBehavior: func(m mocks) {
				m.lending.EXPECT().
					CreateReservation(gomock.Any(), model.CreateReservationRequest{BookID: bookID, UserID: userID, ExpirationDate: expires}).
					Return(model.Reservation{
						ID:              itemID,
						BookID:          bookID,
						UserID:          userID,
						ReservationDate: fixedNow,
						ExpirationDate:  expires,
						Status:          model.ReservationActive,
						CreatedAt:       fixedNow,
						UpdatedAt:       fixedNow,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"id":"6a1f3c2e-9d4b-4e8a-b7c6-5d4e3f2a1b0c","bookId":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","userId":"83575e12-7ce0-48ee-9931-51919ff3c9ee","reservationDate":"2024-03-01T12:00:00Z","expirationDate":"2030-01-01T00:00:00Z","status":"active","createdAt":"2024-03-01T12:00:00Z","updatedAt":"2024-03-01T12:00:00Z"}`,
			},
		},
		{
			name:    "err. already reserved",
			body:    `{"bookId":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","expirationDate":"2030-01-01T00:00:00Z"}`,
			profile: &auth.Profile{UserID: userID.String(), Role: auth.RoleUser},
			mockBehavior: func(m mocks) {
				m.lending.EXPECT().
					CreateReservation(gomock.Any(), gomock.Any()).
					Return(model.Reservation{}, errs.Conflict("book already has an active reservation"))
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"book already has an active reservation"}`,
			},
		},
		{
			name:         "err. book required",
			body:         `{"expirationDate":"2030-01-01T00:00:00Z"}`,
			profile:      &auth.Profile{UserID: userID.String(), Role: auth.RoleUser},
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"Key: 'CreateReservationRequest.BookID' Error:Field validation for 'BookID' failed on the 'required' tag"}`,
			},
		},
		{
			name:         "err. unauthenticated",
			body:         `{}`,
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"unauthorized"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, m := newHandler(t)
			e := newEcho()
			e.POST("/reservations", h.CreateReservation)

			tt.mockBehavior(m)
			w := serve(e, http.MethodPost, "/reservations", tt.body, tt.profile)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CancelReservation(t *testing.T) {
	t.Parallel()
	h, m := newHandler(t)
	e := newEcho()
	e.DELETE("/reservations/:id/cancel", h.CancelReservation)

	m.lending.EXPECT().
		CancelReservation(gomock.Any(), itemID, otherID).
		Return(model.Reservation{}, errs.Forbidden("you can only cancel your own reservations"))

	w := serve(e, http.MethodDelete, "/reservations/"+itemID.String()+"/cancel", "",
		&auth.Profile{UserID: otherID.String(), Role: auth.RoleUser})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, `{"message":"you can only cancel your own reservations"}`, strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_FulfillReservation_Expired(t *testing.T) {
	t.Parallel()
	h, m := newHandler(t)
	e := newEcho()
	e.POST("/reservations/:id/fulfill", h.FulfillReservation)

	due := time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC)
	m.lending.EXPECT().
		FulfillReservation(gomock.Any(), itemID, userID, due).
		Return(model.Loan{}, errs.Conflict("reservation has expired"))

	w := serve(e, http.MethodPost, "/reservations/"+itemID.String()+"/fulfill", `{"loanDueDate":"2030-02-01T00:00:00Z"}`,
		&auth.Profile{UserID: userID.String(), Role: auth.RoleUser})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, `{"message":"reservation has expired"}`, strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_CreateLoan(t *testing.T) {
	t.Parallel()
	due := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		body         string
		profile      auth.Profile
		mockBehavior func(m mocks)
		expectedCode int
	}{
		{
			name:    "self",
			body:    `{"bookId":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","dueDate":"2030-01-01T00:00:00Z"}`,
			profile: auth.Profile{UserID: userID.String(), Role: auth.RoleUser},
			mockBehavior: func(m mocks) {
				m.lending.EXPECT().
					CreateLoan(gomock.Any(), model.CreateLoanRequest{BookID: bookID, UserID: userID, DueDate: due}).
					Return(model.Loan{ID: itemID}, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "user for someone else",
			body:         `{"bookId":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","userId":"0b1c2d3e-4f50-4617-8293-a4b5c6d7e8f9","dueDate":"2030-01-01T00:00:00Z"}`,
			profile:      auth.Profile{UserID: userID.String(), Role: auth.RoleUser},
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusForbidden,
		},
		{
			name:    "admin for someone else",
			body:    `{"bookId":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","userId":"0b1c2d3e-4f50-4617-8293-a4b5c6d7e8f9","dueDate":"2030-01-01T00:00:00Z"}`,
			profile: auth.Profile{UserID: userID.String(), Role: auth.RoleAdmin},
			mockBehavior: func(m mocks) {
				m.lending.EXPECT().
					CreateLoan(gomock.Any(), model.CreateLoanRequest{BookID: bookID, UserID: otherID, DueDate: due}).
					Return(model.Loan{}, errs.Conflict("book is not available for loan"))
			},
			expectedCode: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, m := newHandler(t)
			e := newEcho()
			e.POST("/loans", h.CreateLoan)

			tt.mockBehavior(m)
			profile := tt.profile
			w := serve(e, http.MethodPost, "/loans", tt.body, &profile)
			require.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestHandler_ReturnLoan(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		profile      auth.Profile
		mockBehavior func(m mocks)
		expectedCode int
	}{
		{
			name:    "owner",
			profile: auth.Profile{UserID: userID.String(), Role: auth.RoleUser},
			mockBehavior: func(m mocks) {
				m.lending.EXPECT().GetLoan(gomock.Any(), itemID).Return(model.Loan{ID: itemID, UserID: userID}, nil)
				m.lending.EXPECT().ReturnLoan(gomock.Any(), itemID, nil).Return(model.Loan{ID: itemID, Status: model.LoanReturned}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:    "not owner",
			profile: auth.Profile{UserID: otherID.String(), Role: auth.RoleUser},
			mockBehavior: func(m mocks) {
				m.lending.EXPECT().GetLoan(gomock.Any(), itemID).Return(model.Loan{ID: itemID, UserID: userID}, nil)
			},
			expectedCode: http.StatusForbidden,
		},
		{
			name:    "admin, already returned",
			profile: auth.Profile{UserID: otherID.String(), Role: auth.RoleAdmin},
			mockBehavior: func(m mocks) {
				m.lending.EXPECT().ReturnLoan(gomock.Any(), itemID, nil).Return(model.Loan{}, errs.Conflict("loan is not active"))
			},
			expectedCode: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, m := newHandler(t)
			e := newEcho()
			e.PUT("/loans/:id/return", h.ReturnLoan)

			tt.mockBehavior(m)
			profile := tt.profile
			w := serve(e, http.MethodPut, "/loans/"+itemID.String()+"/return", "", &profile)
			require.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestHandler_ExpireReservations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		mockBehavior func(m mocks)
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			mockBehavior: func(m mocks) {
				m.sweeper.EXPECT().Run(gomock.Any()).Return(2, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"expiredCount":2,"message":"Expired 2 reservations"}`,
		},
		{
			name: "err. already running",
			mockBehavior: func(m mocks) {
				m.sweeper.EXPECT().Run(gomock.Any()).Return(0, job.ErrAlreadyRunning)
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"message":"expiration sweep is already running"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, m := newHandler(t)
			e := newEcho()
			e.POST("/admin/expire-reservations", h.ExpireReservations)

			tt.mockBehavior(m)
			w := serve(e, http.MethodPost, "/admin/expire-reservations", "", nil)
			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestRouter_AdminGuard(t *testing.T) {
	t.Parallel()
	h, m := newHandler(t)
	e := h.NewRouter()
	tokens := auth.NewTokens("secret", time.Hour)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/manage/health", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	userToken, err := tokens.Issue(userID.String(), "u@example.com", auth.RoleUser)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodDelete, "/api/v1/books/"+bookID.String(), http.NoBody)
	r.Header.Set("Authorization", "Bearer "+userToken)
	w = httptest.NewRecorder()
	e.ServeHTTP(w, r)
	require.Equal(t, http.StatusForbidden, w.Code)

	adminToken, err := tokens.Issue(otherID.String(), "a@example.com", auth.RoleAdmin)
	require.NoError(t, err)
	m.books.EXPECT().DeleteBook(gomock.Any(), bookID).Return(errs.Conflict("book is loaned and cannot be deleted"))
	r = httptest.NewRequest(http.MethodDelete, "/api/v1/books/"+bookID.String(), http.NoBody)
	r.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	e.ServeHTTP(w, r)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_Register(t *testing.T) {
	t.Parallel()
	tokens := auth.NewTokens("secret", time.Hour)
	userToken, err := tokens.Issue(userID.String(), "u@example.com", auth.RoleUser)
	require.NoError(t, err)
	adminToken, err := tokens.Issue(otherID.String(), "a@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name         string
		role         string
		token        string
		mockBehavior func(m mocks)
		expectedCode int
	}{
		{
			name: "user",
			role: "user",
			mockBehavior: func(m mocks) {
				m.auth.EXPECT().RegisterUser(gomock.Any(), model.RegisterRequest{
					Email: "new@example.com", Password: "secret1", Name: "Reader", Role: model.RoleUser,
				}).Return(model.AuthResponse{}, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "err. anonymous admin",
			role:         "admin",
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "err. admin by user",
			role:         "admin",
			token:        userToken,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "err. admin with bad token",
			role:         "admin",
			token:        "garbage",
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusForbidden,
		},
		{
			name:  "admin by admin",
			role:  "admin",
			token: adminToken,
			mockBehavior: func(m mocks) {
				m.auth.EXPECT().RegisterUser(gomock.Any(), model.RegisterRequest{
					Email: "new@example.com", Password: "secret1", Name: "Reader", Role: model.RoleAdmin,
				}).Return(model.AuthResponse{}, nil)
			},
			expectedCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, m := newHandler(t)
			e := newEcho()
			e.POST("/auth/register", h.Register)

			tt.mockBehavior(m)
			body := `{"email":"new@example.com","password":"secret1","name":"Reader","role":"` + tt.role + `"}`
			r := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)
			require.Equal(t, tt.expectedCode, w.Code)
		})
	}
}
