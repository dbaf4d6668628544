// Package heygen is a thin HTTP client for the external avatar-training
// service. It covers the three calls the pipeline consumes: asset upload,
// photo avatar group creation, and training kickoff. All calls authenticate
// with a static API key header.
package heygen
