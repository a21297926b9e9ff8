package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/domain/mileage"
	domrec "github.com/kailas-cloud/carscore/internal/domain/record"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
)

// recordDTO is the JSON document stored per record.
type recordDTO struct {
	ID           string          `json:"id"`
	Requester    string          `json:"requester"`
	CreatedAtMs  int64           `json:"created_at_ms"`
	Make         string          `json:"make"`
	Model        string          `json:"model"`
	SubModel     string          `json:"sub_model,omitempty"`
	Year         int             `json:"year"`
	Fuel         string          `json:"fuel,omitempty"`
	Transmission string          `json:"transmission,omitempty"`
	MileageRange string          `json:"mileage_range,omitempty"`
	MileageDelta int             `json:"mileage_delta,omitempty"`
	MileageNote  string          `json:"mileage_note,omitempty"`
	Result       json.RawMessage `json:"result"`
}

func encodeRecord(rec *domrec.Record) ([]byte, error) {
	result, err := json.Marshal(rec.Result())
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	f := rec.Identity().Fields()
	adj := rec.Adjustment()
	return json.Marshal(recordDTO{
		ID:           rec.ID(),
		Requester:    rec.Requester(),
		CreatedAtMs:  rec.CreatedAt().UnixMilli(),
		Make:         f.Make,
		Model:        f.Model,
		SubModel:     f.SubModel,
		Year:         f.Year,
		Fuel:         f.Fuel,
		Transmission: f.Transmission,
		MileageRange: f.MileageRange,
		MileageDelta: adj.Delta,
		MileageNote:  adj.Note,
		Result:       result,
	})
}

func decodeRecord(data []byte) (domrec.Record, error) {
	var dto recordDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return domrec.Record{}, fmt.Errorf("decode record: %w", err)
	}
	if dto.ID == "" || dto.CreatedAtMs <= 0 {
		return domrec.Record{}, errors.New("decode record: missing id or timestamp")
	}

	var result assessment.Assessment
	if len(dto.Result) > 0 {
		if err := result.UnmarshalJSON(dto.Result); err != nil {
			return domrec.Record{}, fmt.Errorf("decode record %s result: %w", dto.ID, err)
		}
	}

	identity := vehicle.Reconstruct(vehicle.Fields{
		Make:         dto.Make,
		Model:        dto.Model,
		SubModel:     dto.SubModel,
		Year:         dto.Year,
		Fuel:         dto.Fuel,
		Transmission: dto.Transmission,
		MileageRange: dto.MileageRange,
	})
	return domrec.Reconstruct(
		dto.ID, dto.Requester, identity, time.UnixMilli(dto.CreatedAtMs),
		result, mileage.Adjustment{Delta: dto.MileageDelta, Note: dto.MileageNote},
	), nil
}
