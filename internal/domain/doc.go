// Package domain contains the core entities of the Atlaris learning-plan
// service: plans, generation attempts, plan content (modules and tasks),
// queue jobs, quota usage, and users. Entities carry their own validation
// and expose no persistence concerns.
package domain
