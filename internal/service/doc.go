// Package service holds the producer-side application services. The avatar
// service is the boundary between an inbound creation request and the
// asynchronous pipeline: it stages the source image, validates the job, and
// hands it to the queue through the event emitter.
package service
