package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvatarJobValidate(t *testing.T) {
	job := validJob()
	assert.NoError(t, job.Validate())

	// Ethnicity is optional
	job.Ethnicity = ""
	assert.NoError(t, job.Validate())
}

func TestAvatarJobValidateRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AvatarJob)
	}{
		{"missing image path", func(j *AvatarJob) { j.ImagePath = "" }},
		{"missing name", func(j *AvatarJob) { j.Name = "" }},
		{"missing user ID", func(j *AvatarJob) { j.UserID = "" }},
		{"missing mime type", func(j *AvatarJob) { j.MimeType = "" }},
		{"unknown age group", func(j *AvatarJob) { j.AgeGroup = "elder" }},
		{"unknown gender", func(j *AvatarJob) { j.Gender = "robot" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := validJob()
			tt.mutate(&job)
			assert.ErrorIs(t, job.Validate(), ErrInvalidJob)
		})
	}
}
