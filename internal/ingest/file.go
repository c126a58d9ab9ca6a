package ingest

import (
	"context"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// FileSource reads observation rows from a YAML file. It backs offline runs
// and fixtures, replacing the live telemetry source.
type FileSource struct {
	path string
}

type fileRow struct {
	EntityKey   string            `yaml:"entity_key"`
	Metric      string            `yaml:"metric"`
	WindowStart time.Time         `yaml:"window_start"`
	WindowEnd   time.Time         `yaml:"window_end"`
	Value       float64           `yaml:"value"`
	Dimensions  map[string]string `yaml:"dimensions"`
}

// NewFileSource creates a source over a YAML observation file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string {
	return "file:" + f.path
}

// Collect parses the whole file. Rows without an end default to an hourly
// window.
func (f *FileSource) Collect(ctx context.Context) ([]models.Observation, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceFailed, "Failed to read observation file").
			WithContext("path", f.path)
	}

	var rows []fileRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceFailed, "Failed to parse observation file").
			WithContext("path", f.path)
	}

	out := make([]models.Observation, 0, len(rows))
	for i, r := range rows {
		if r.EntityKey == "" || r.Metric == "" || r.WindowStart.IsZero() {
			return nil, errors.New(errors.ErrCodeInvalidInput, "Observation row missing entity_key, metric or window_start").
				WithContext("path", f.path).
				WithContext("row", i+1)
		}
		end := r.WindowEnd
		if end.IsZero() {
			end = r.WindowStart.Add(time.Hour)
		}
		out = append(out, models.Observation{
			EntityKey:   r.EntityKey,
			Metric:      r.Metric,
			WindowStart: r.WindowStart.UTC(),
			WindowEnd:   end.UTC(),
			Value:       r.Value,
			Dimensions:  r.Dimensions,
			IngestedAt:  time.Now().UTC(),
		})
	}
	return out, nil
}
