package postgres

import (
	"context"
	"fmt"

	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
)

type pgContactIndexRepository struct {
	db DB
}

// NewPgContactIndexRepository creates a read-only view over the
// phone→contact index maintained by the contact module.
func NewPgContactIndexRepository(db DB) domain.ContactIndexRepository {
	return &pgContactIndexRepository{db: db}
}

func (r *pgContactIndexRepository) FindContactIDsByPhoneHash(ctx context.Context, workspaceID, phoneHash string) ([]string, error) {
	query := `SELECT contact_id FROM contact_phone_index WHERE workspace_id = $1 AND phone_hash = $2`
	rows, err := r.db.Query(ctx, query, workspaceID, phoneHash)
	if err != nil {
		return nil, fmt.Errorf("querying contact phone index: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning contact id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
