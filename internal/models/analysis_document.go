package models

import (
	"encoding/json"
	"sort"
)

// Known fragment keys. Each fragment is produced independently by one
// sub-model and may be absent depending on which model flags were set.
const (
	FragmentDensity         = "density_results"
	FragmentThickness       = "thickness_results"
	FragmentCombinedMetrics = "combined_metrics"
	FragmentModelParameters = "model_parameters"
	FragmentImageMetadata   = "image_metadata"
)

// AnalysisDocument is the free-form results document attached to a completed
// upload record. Known fragments are kept as raw JSON so they survive a
// round trip through the store unchanged; fragment kinds this version does
// not know about land in Extra and are carried along on marshal.
type AnalysisDocument struct {
	DensityResults      json.RawMessage
	ThicknessResults    json.RawMessage
	CombinedMetrics     json.RawMessage
	ModelParameters     json.RawMessage
	ImageMetadata       json.RawMessage
	ProcessingTimestamp float64
	UploadID            string
	Extra               map[string]json.RawMessage
}

// IsEmpty reports whether the document carries no fragments at all.
func (d *AnalysisDocument) IsEmpty() bool {
	if d == nil {
		return true
	}
	return !fragmentSet(d.DensityResults) &&
		!fragmentSet(d.ThicknessResults) &&
		!fragmentSet(d.CombinedMetrics) &&
		!fragmentSet(d.ModelParameters) &&
		!fragmentSet(d.ImageMetadata) &&
		len(d.Extra) == 0
}

func fragmentSet(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func (d AnalysisDocument) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}

	put := func(key string, raw json.RawMessage) {
		if fragmentSet(raw) {
			out[key] = raw
		}
	}
	put(FragmentDensity, d.DensityResults)
	put(FragmentThickness, d.ThicknessResults)
	put(FragmentCombinedMetrics, d.CombinedMetrics)
	put(FragmentModelParameters, d.ModelParameters)
	put(FragmentImageMetadata, d.ImageMetadata)

	for k, v := range d.Extra {
		if _, known := out[k]; !known {
			out[k] = v
		}
	}

	ts, err := json.Marshal(d.ProcessingTimestamp)
	if err != nil {
		return nil, err
	}
	out["processing_timestamp"] = ts

	if d.UploadID != "" {
		id, err := json.Marshal(d.UploadID)
		if err != nil {
			return nil, err
		}
		out["upload_id"] = id
	}

	// Deterministic key order so stored documents diff cleanly.
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, out[k]...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func (d *AnalysisDocument) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	take := func(key string) json.RawMessage {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		return v
	}

	d.DensityResults = take(FragmentDensity)
	d.ThicknessResults = take(FragmentThickness)
	d.CombinedMetrics = take(FragmentCombinedMetrics)
	d.ModelParameters = take(FragmentModelParameters)
	d.ImageMetadata = take(FragmentImageMetadata)

	if ts := take("processing_timestamp"); ts != nil {
		if err := json.Unmarshal(ts, &d.ProcessingTimestamp); err != nil {
			return err
		}
	}
	if id := take("upload_id"); id != nil {
		if err := json.Unmarshal(id, &d.UploadID); err != nil {
			return err
		}
	}

	d.Extra = nil
	if len(raw) > 0 {
		d.Extra = raw
	}
	return nil
}
