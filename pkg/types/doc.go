// Package types defines the canonical conversation model shared by every
// connector and every index consumer.
//
// Connectors normalize arbitrary per-tool session storage into
// NormalizedConversation values; the indexing and storage layers consume
// them without knowing which tool produced them. The package also carries
// the search result types (Hit, MatchType, Provenance) and the structural
// error taxonomy.
package types
