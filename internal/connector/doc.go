// Package connector discovers and normalizes the on-disk session storage of
// coding-assistant tools into the canonical conversation model.
//
// Each connector implements the same two-phase contract: a cheap Detect probe
// that checks for the tool's data directory without parsing anything, and a
// Scan that reads every store into NormalizedConversations. Database-backed
// sources use schema sniffing (resolving logical fields through ordered
// candidate column names) so schema drift between tool versions is absorbed
// by data, not code.
package connector
