package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// Event is the decrypted view of one non-record row handed to the UI.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Flavour   types.Flavour   `json:"flavour"`
	CreatedAt time.Time       `json:"createdAt"`
	Payload   json.RawMessage `json:"payload"`
}

// RecordView is the decrypted view of one record row.
type RecordView struct {
	ID        uuid.UUID             `json:"id"`
	CreatedAt time.Time             `json:"createdAt"`
	Record    *models.RecordPointer `json:"record"`
}

// EventService serves decrypted reads over the local store.
type EventService struct {
	dataRepo  *storage.EncryptedDataRepository
	prefsRepo *storage.PreferencesRepository
	sessions  viewKeySource
}

// NewEventService creates a new event service.
func NewEventService(dataRepo *storage.EncryptedDataRepository, prefsRepo *storage.PreferencesRepository, sessions viewKeySource) *EventService {
	return &EventService{dataRepo: dataRepo, prefsRepo: prefsRepo, sessions: sessions}
}

func (s *EventService) unlock(ctx context.Context) (*keys.ViewingKey, *storage.Preferences, error) {
	viewKey, err := s.sessions.Get()
	if err != nil {
		return nil, nil, err
	}
	vk, err := keys.ParseViewKey(viewKey)
	if err != nil {
		return nil, nil, err
	}
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	return vk, prefs, nil
}

func toEvent(vk *keys.ViewingKey, row *models.EncryptedData) (*Event, error) {
	payload, err := vk.OpenPayload(row.Ciphertext, row.Nonce)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        row.ID,
		Flavour:   row.Flavour,
		CreatedAt: row.CreatedAt,
		Payload:   json.RawMessage(payload),
	}, nil
}

// GetEvent returns one decrypted event by row id.
func (s *EventService) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	vk, _, err := s.unlock(ctx)
	if err != nil {
		return nil, err
	}
	row, err := s.dataRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.Flavour == types.FlavourRecord {
		return nil, werr.NotFound("event")
	}
	return toEvent(vk, row)
}

// EventsPage is one page of decrypted events.
type EventsPage struct {
	Events []*Event   `json:"events"`
	Page   types.Page `json:"paging"`
}

// GetEvents returns the filtered, paged event list, oldest first.
func (s *EventService) GetEvents(ctx context.Context, filter types.EventsFilter, page int) (*EventsPage, error) {
	if page < 1 {
		return nil, werr.Validation("Page numbers start at 1")
	}
	vk, prefs, err := s.unlock(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.dataRepo.GetEvents(ctx, prefs.Address, prefs.Network)
	if err != nil {
		return nil, err
	}

	var match []*Event
	for _, row := range rows {
		if filter.EventType != "" && row.Flavour != filter.EventType {
			continue
		}
		if filter.ProgramID != "" && (row.ProgramID == nil || *row.ProgramID != filter.ProgramID) {
			continue
		}
		if filter.FunctionID != "" && (row.FunctionID == nil || *row.FunctionID != filter.FunctionID) {
			continue
		}
		event, err := toEvent(vk, row)
		if err != nil {
			return nil, err
		}
		match = append(match, event)
	}

	paged, paging := paginate(match, page)
	return &EventsPage{Events: paged, Page: paging}, nil
}

// RecordsPage is one page of decrypted records.
type RecordsPage struct {
	Records []*RecordView `json:"records"`
	Page    types.Page    `json:"paging"`
}

// GetRecords returns the filtered, paged record list, oldest first.
func (s *EventService) GetRecords(ctx context.Context, filter types.RecordsFilter, page int) (*RecordsPage, error) {
	if page < 1 {
		return nil, werr.Validation("Page numbers start at 1")
	}
	vk, prefs, err := s.unlock(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.dataRepo.GetByFlavour(ctx, prefs.Address, types.FlavourRecord, prefs.Network)
	if err != nil {
		return nil, err
	}

	var match []*RecordView
	for _, row := range rows {
		ptr, err := models.DecryptPointer[models.RecordPointer](vk, row)
		if err != nil {
			return nil, err
		}
		if !matchRecord(ptr, filter) {
			continue
		}
		match = append(match, &RecordView{ID: row.ID, CreatedAt: row.CreatedAt, Record: ptr})
	}

	paged, paging := paginate(match, page)
	return &RecordsPage{Records: paged, Page: paging}, nil
}

func matchRecord(ptr *models.RecordPointer, filter types.RecordsFilter) bool {
	switch filter.Scope {
	case types.ScopeSpent:
		if !ptr.Spent {
			return false
		}
	case types.ScopeUnspent:
		if ptr.Spent {
			return false
		}
	}
	if len(filter.ProgramIDs) > 0 {
		found := false
		for _, id := range filter.ProgramIDs {
			if ptr.ProgramID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.FunctionID != "" && ptr.FunctionID != filter.FunctionID {
		return false
	}
	if filter.RecordName != "" && ptr.RecordName != filter.RecordName {
		return false
	}
	return true
}

// GetBalance sums the wallet's unspent microcredits, optionally narrowed
// to one record name.
func (s *EventService) GetBalance(ctx context.Context, recordName string) (uint64, error) {
	vk, prefs, err := s.unlock(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := s.dataRepo.GetByFlavour(ctx, prefs.Address, types.FlavourRecord, prefs.Network)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, row := range rows {
		ptr, err := models.DecryptPointer[models.RecordPointer](vk, row)
		if err != nil {
			return 0, err
		}
		if ptr.Spent {
			continue
		}
		if recordName != "" && ptr.RecordName != recordName {
			continue
		}
		total += ptr.Microcredits
	}
	return total, nil
}

// DecryptRecords opens raw record ciphertexts with the session viewing
// key. Undecryptable entries come back as nil so positions line up.
func (s *EventService) DecryptRecords(ctx context.Context, ciphertexts []string) ([]*keys.RecordPlaintext, error) {
	if len(ciphertexts) == 0 {
		return nil, werr.Validation("At least one ciphertext is required")
	}
	if len(ciphertexts) > types.PageSize {
		return nil, werr.Validation("At most 50 ciphertexts per call")
	}

	viewKey, err := s.sessions.Get()
	if err != nil {
		return nil, err
	}
	vk, err := keys.ParseViewKey(viewKey)
	if err != nil {
		return nil, err
	}

	out := make([]*keys.RecordPlaintext, len(ciphertexts))
	for i, ct := range ciphertexts {
		plain, err := vk.DecryptRecord(ct)
		if err != nil {
			if werr.Is(err, werr.KindDecryption) {
				continue
			}
			return nil, err
		}
		out[i] = plain
	}
	return out, nil
}

// paginate slices a filtered result set into one 1-indexed page.
func paginate[T any](items []T, page int) ([]T, types.Page) {
	paging := types.Page{
		Number:    page,
		PageCount: types.PageCount(len(items)),
		Total:     len(items),
	}
	start := (page - 1) * types.PageSize
	if start >= len(items) {
		return nil, paging
	}
	end := start + types.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], paging
}
