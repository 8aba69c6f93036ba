package repository

import (
	"net/http"
	"time"

	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for purchaseDate and expiryDate
const DateLayout = "2006-01-02"

func init() {
	// Item prices are stored as JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// entity is implemented by every record type; the id is the store key and
// never part of the stored document
type entity interface {
	SetID(id string)
}

func encodeEntity(v any) (store.Document, error) {
	doc, err := store.Encode(v)
	if err != nil {
		return nil, errors.Wrap(err, "ENCODE_ERROR", "record could not be encoded", http.StatusInternalServerError)
	}
	delete(doc, "id")
	return doc, nil
}

func decodeEntity[T any, PT interface {
	*T
	entity
}](id string, doc store.Document) (*T, error) {
	out := PT(new(T))
	if err := store.Decode(doc, out); err != nil {
		return nil, err
	}
	out.SetID(id)
	return (*T)(out), nil
}

// decodeSnapshot converts a collection snapshot into typed records ordered by id.
// Records that do not decode are skipped and logged so one bad document does not
// hide the rest of the collection.
func decodeSnapshot[T any, PT interface {
	*T
	entity
}](snap store.Snapshot, log *logger.Logger) []*T {
	records := store.ToRecords(snap)
	out := make([]*T, 0, len(records))
	for _, rec := range records {
		v, err := decodeEntity[T, PT](rec.ID, rec.Data)
		if err != nil {
			log.Warn().Err(err).
				Str("collection", snap.Collection).
				Str("id", rec.ID).
				Msg("skipping malformed record")
			continue
		}
		out = append(out, v)
	}
	return out
}

func now() time.Time {
	return time.Now().UTC()
}
