package httpapi

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/plategate/internal/plategate/types"
)

// ── Access ───────────────────────────────────────────────────────────────────

// manualEntryFromProto reads {plate, note} from a Struct body.
func manualEntryFromProto(p *structpb.Struct) types.ManualEntryRequest {
	f := p.GetFields()
	return types.ManualEntryRequest{
		Plate: f["plate"].GetStringValue(),
		Note:  f["note"].GetStringValue(),
	}
}

// verdictToProto mirrors the JSON verdict field names so clients can switch
// encodings without remapping.
func verdictToProto(v types.AccessVerdict) (*structpb.Struct, error) {
	m := map[string]any{
		"outcome":      string(v.Outcome),
		"authorized":   v.Authorized,
		"confidence":   v.Confidence,
		"message":      v.Message,
		"format_valid": v.FormatValid,
		"server_time":  v.ServerTime,
	}
	if v.Plate != "" {
		m["plate"] = v.Plate
	}
	if v.LowConfidence {
		m["low_confidence"] = true
	}
	if v.EventID != 0 {
		m["event_id"] = v.EventID
	}
	if v.ErrorKind != "" {
		m["error_kind"] = string(v.ErrorKind)
	}
	if v.Identity != nil {
		m["identity"] = map[string]any{
			"id":         v.Identity.ID,
			"name":       v.Identity.DisplayName,
			"occupation": v.Identity.Occupation,
		}
	}
	return structpb.NewStruct(m)
}
