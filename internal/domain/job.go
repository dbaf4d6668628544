package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// AgeGroup classifies the approximate age bracket of the person in the
// source photo. The provider uses it to steer avatar training.
type AgeGroup string

// Possible age group values
const (
	AgeGroupChild  AgeGroup = "child"
	AgeGroupTeen   AgeGroup = "teen"
	AgeGroupAdult  AgeGroup = "adult"
	AgeGroupSenior AgeGroup = "senior"
)

// Gender classifies the gender presented in the source photo.
type Gender string

// Possible gender values
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ErrInvalidJob wraps all job payload validation failures.
var ErrInvalidJob = errors.New("invalid avatar job")

// jobValidator validates AvatarJob payloads against their struct tags.
var jobValidator = validator.New()

// AvatarJob is the payload describing one avatar-creation request.
// It is created by the producer (API layer) and is immutable once enqueued.
// The staged image at ImagePath is owned exclusively by this job until the
// pipeline releases it.
type AvatarJob struct {
	ImagePath string   `json:"image_path" validate:"required"`
	AgeGroup  AgeGroup `json:"age_group"  validate:"required,oneof=child teen adult senior"`
	Name      string   `json:"name"       validate:"required"`
	Gender    Gender   `json:"gender"     validate:"required,oneof=male female other"`
	UserID    string   `json:"user_id"    validate:"required"`
	Ethnicity string   `json:"ethnicity,omitempty"`
	MimeType  string   `json:"mime_type"  validate:"required"`
}

// Validate checks the job payload against its validation tags.
// Returns an error wrapping ErrInvalidJob if any field fails validation.
func (j *AvatarJob) Validate() error {
	if err := jobValidator.Struct(j); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return nil
}
