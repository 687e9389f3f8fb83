// Package core contains the loans domain contracts, entities, and
// orchestration logic: grant code allocation, transactional units of work,
// loan issuance, payment processing, and lifecycle notifications. Storage and
// transport adapters depend on this package; core must not depend on them.
package core
