// Package metering contains the domain model for the usage metering and
// quota enforcement engine: the plan catalog with per-seat limit scaling,
// the per-tenant quota ledger with lazy daily/monthly resets, top-up packs,
// and notification de-duplication records.
//
// The package holds pure domain logic only. Orchestration (admission gating,
// auto top-up, threshold notification) lives in application/metering, and
// storage lives in infrastructure/persistence.
package metering
