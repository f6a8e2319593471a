package models

import "encoding/json"

// AnalysisSubmission is the client-supplied analysis payload of the
// store-analysis operation: descriptive metadata about the source asset
// mixed with result fragments. Metadata keys are lifted into fields;
// everything else is kept verbatim as fragments for the results document.
type AnalysisSubmission struct {
	Filename          string
	FileSize          int64
	FileType          string
	URL               string
	DensityModelRun   *bool
	ThicknessModelRun *bool
	Fragments         map[string]json.RawMessage
}

type submissionMetadata struct {
	Filename          string `json:"filename"`
	FileSize          int64  `json:"file_size"`
	FileType          string `json:"file_type"`
	URL               string `json:"url"`
	DensityModelRun   *bool  `json:"density_model_run"`
	ThicknessModelRun *bool  `json:"thickness_model_run"`
}

var submissionMetadataKeys = []string{
	"filename", "file_size", "file_type", "url",
	"density_model_run", "thickness_model_run",
}

func (s *AnalysisSubmission) UnmarshalJSON(data []byte) error {
	var meta submissionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range submissionMetadataKeys {
		delete(raw, k)
	}

	s.Filename = meta.Filename
	s.FileSize = meta.FileSize
	s.FileType = meta.FileType
	s.URL = meta.URL
	s.DensityModelRun = meta.DensityModelRun
	s.ThicknessModelRun = meta.ThicknessModelRun
	s.Fragments = raw
	return nil
}

// BuildDocument assembles a results document from loose fragments, routing
// known fragment kinds to their fields and keeping the rest as extensions.
func BuildDocument(fragments map[string]json.RawMessage, processingTimestamp float64, uploadID string) *AnalysisDocument {
	doc := &AnalysisDocument{
		ProcessingTimestamp: processingTimestamp,
		UploadID:            uploadID,
	}

	take := func(key string) json.RawMessage {
		v, ok := fragments[key]
		if !ok {
			return nil
		}
		return v
	}
	doc.DensityResults = take(FragmentDensity)
	doc.ThicknessResults = take(FragmentThickness)
	doc.CombinedMetrics = take(FragmentCombinedMetrics)
	doc.ModelParameters = take(FragmentModelParameters)
	doc.ImageMetadata = take(FragmentImageMetadata)

	known := map[string]bool{
		FragmentDensity: true, FragmentThickness: true,
		FragmentCombinedMetrics: true, FragmentModelParameters: true,
		FragmentImageMetadata: true,
		// never accept caller overrides for the envelope fields
		"processing_timestamp": true, "upload_id": true,
	}
	for k, v := range fragments {
		if known[k] {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = map[string]json.RawMessage{}
		}
		doc.Extra[k] = v
	}
	return doc
}
