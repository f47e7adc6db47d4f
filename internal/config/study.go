package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // study time zones must resolve on minimal images

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

// Study describes one analysis run: where the gauge data lives, which storm
// dates to evaluate, and the QC and conversion policies to apply.
type Study struct {
	Timezone      string              `yaml:"timezone" validate:"required"`
	RegistryTable string              `yaml:"registry_table" validate:"required"`
	Sources       []domain.SourceSpec `yaml:"sources" validate:"required,min=1,unique=Src,dive"`
	Dates         []string            `yaml:"dates" validate:"required,min=1,unique,dive,required"`
	TrimPercent   float64             `yaml:"trim_percent" validate:"gt=0,lt=0.5"`
	ZeroDayMask   bool                `yaml:"zero_day_mask"`
	ResetPolicy   string              `yaml:"reset_policy" validate:"omitempty,oneof=carry strict"`
	FirstValue    string              `yaml:"first_value" validate:"omitempty,oneof=absolute zero"`
	SubDaily      []string            `yaml:"sub_daily" validate:"dive,oneof=15min hour"`
	Deny          []string            `yaml:"deny"`

	location *time.Location
	dates    []domain.Date
	opts     domain.IncrementalOptions
}

// DefaultStudy returns the Norfolk/Virginia Beach storm study settings.
func DefaultStudy() *Study {
	return &Study{
		Timezone:      "America/New_York",
		RegistryTable: "sites_list",
		TrimPercent:   domain.DefaultTrimPercent,
		ZeroDayMask:   true,
		ResetPolicy:   "carry",
		FirstValue:    "absolute",
		SubDaily:      []string{"15min", "hour"},
		Deny: []string{
			"KVAVIRGI52", "KVAVIRGI112", "KVAVIRGI126", "KVAVIRGI129",
			"KVAVIRGI117", "KVAVIRGI122", "KVAVIRGI147", "KVAVIRGI137",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadStudy reads a YAML study file over DefaultStudy and validates it.
func LoadStudy(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read study %s: %w", path, err)
	}
	s, err := ParseStudy(data)
	if err != nil {
		return nil, fmt.Errorf("study %s: %w", path, err)
	}
	return s, nil
}

// ParseStudy decodes and validates a YAML study document. Unknown keys are rejected.
func ParseStudy(data []byte) (*Study, error) {
	s := DefaultStudy()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := s.resolve(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Study) resolve() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid study: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid study: %w", err)
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	s.location = loc

	s.dates = make([]domain.Date, 0, len(s.Dates))
	for _, raw := range s.Dates {
		d, err := domain.ParseDate(raw)
		if err != nil {
			return err
		}
		s.dates = append(s.dates, d)
	}

	if s.opts.Reset, err = domain.ParseResetPolicy(s.ResetPolicy); err != nil {
		return err
	}
	if s.opts.First, err = domain.ParseFirstValuePolicy(s.FirstValue); err != nil {
		return err
	}
	return nil
}

// Location returns the study time zone.
func (s *Study) Location() *time.Location { return s.location }

// StormDates returns the parsed study dates in file order.
func (s *Study) StormDates() []domain.Date {
	out := make([]domain.Date, len(s.dates))
	copy(out, s.dates)
	return out
}

// Incremental returns the cumulative conversion options.
func (s *Study) Incremental() domain.IncrementalOptions { return s.opts }

// SubDailyResolutions returns the resolutions of the sub-daily tables.
func (s *Study) SubDailyResolutions() []domain.Resolution {
	out := make([]domain.Resolution, 0, len(s.SubDaily))
	for _, name := range s.SubDaily {
		// validated by oneof above
		r, _ := domain.ParseResolution(name)
		out = append(out, r)
	}
	return out
}
