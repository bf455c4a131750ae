package ports

import (
	"context"

	"github.com/bnema/penphinmind/internal/domain"
)

type ActiveMindStore interface {
	Load(ctx context.Context) (domain.ActiveMindRecord, error)
	Save(ctx context.Context, record domain.ActiveMindRecord) error
}
