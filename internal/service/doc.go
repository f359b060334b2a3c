// Package service contains the application services that sit between the
// HTTP layer and the domain: plan generation orchestration, the job
// executor for generation work, and user registration/authentication.
package service
