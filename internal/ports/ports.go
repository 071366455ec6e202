package ports

import (
	"context"
	"time"

	"TasteClient/internal/domain"
)

// TokenPersister keeps one string value per key across process restarts.
type TokenPersister interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CredentialStore is the view of the session the transport needs:
// read the token for outgoing requests, drop it on 401.
type CredentialStore interface {
	Current() (domain.Credential, bool)
	Clear(ctx context.Context) error
}

// AuthExpiredListener reacts to a forced logout, typically by sending the user to login.
type AuthExpiredListener interface {
	OnAuthExpired(event domain.AuthExpired)
}

// AuthExpiredFunc adapts a plain function to AuthExpiredListener.
type AuthExpiredFunc func(event domain.AuthExpired)

// OnAuthExpired calls f(event).
func (f AuthExpiredFunc) OnAuthExpired(event domain.AuthExpired) {
	f(event)
}

// Scorer submits a single image for aesthetic scoring.
type Scorer interface {
	ScoreImage(ctx context.Context, file domain.ImageFile) (domain.ScoringResult, error)
}

// TrendSource reads trend snapshots from the remote service.
type TrendSource interface {
	GetCurrentTrends(ctx context.Context) ([]domain.Trend, error)
	PredictTrends(ctx context.Context, category string) ([]domain.Trend, error)
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
