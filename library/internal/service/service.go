package service

import (
	"context"
	"time"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Publisher delivers lifecycle events after their transaction committed.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, email, role string) (string, error)
}

type Service struct {
	log        *zap.Logger
	repo       repository.Repository
	publisher  Publisher
	tokens     TokenIssuer
	now        func() time.Time
	bcryptCost int
}

type Option func(s *Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithTokenIssuer(t TokenIssuer) Option {
	return func(s *Service) {
		s.tokens = t
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func NewService(repo repository.Repository, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:        log.Named("service"),
		repo:       repo,
		publisher:  noopPublisher{},
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

// publish never fails the calling operation: the state change already committed.
func (s *Service) publish(ctx context.Context, events ...model.Event) {
	for _, ev := range events {
		if err := s.publisher.Publish(ctx, ev.BookID.String(), ev); err != nil {
			s.log.Warn("publish event",
				zap.String("type", string(ev.Type)),
				zap.Stringer("book_id", ev.BookID),
				zap.Error(err))
		}
	}
}

// notFound replaces a bare repository not-found with a message naming the entity.
func notFound(err error, msg string) error {
	if errors.Is(err, errs.ErrNotFound) {
		var e *errs.Error
		if errors.As(err, &e) && e.Message != "" {
			return err
		}
		return errs.NotFound(msg)
	}
	return err
}
