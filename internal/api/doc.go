// Package api contains the HTTP handlers, request/response models, and
// error mapping for the public REST surface. Handlers stay thin: they
// decode and validate input, call a service, and translate the outcome
// into a status code and JSON body.
package api
