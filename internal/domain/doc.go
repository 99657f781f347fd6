// Package domain models incidents published by a county 911 dispatch feed.
//
// # Data Source
//
// The feed is a single HTML page listing every call currently active at the
// communications district. It is polled on a fixed interval; rows appear when
// a call is dispatched and disappear when the call is cleared. There is no
// stable call number in the page, so identity has to be derived from content.
//
// # Feed Row Conventions
//
// Each table row carries seven cells, in order:
//
//	Agency | Time | Units | Description | Street | Cross Streets | Municipality
//
// Agency codes are short uppercase identifiers ("SPD", "CFD1", "CPSO"). The
// first three characters select the storage partition, see [PartitionKeyFor].
//
// Time is HHMM in 24-hour local notation without a date, e.g. "2315". The
// date is taken from the poll time; a time later than the poll time belongs
// to the previous day (calls that started before midnight). See [NewEvent].
//
// Units is the number of responding units. It changes while a call is active
// and is deliberately excluded from the fingerprint.
//
// Street is usually "<block> <name>" ("4400 BLOCK N MARKET ST"). Cross
// streets are joined with "&", "/" or the word "AND" ("LINE AVE & YOUREE DR").
//
// # Identity
//
// A fingerprint is the SHA-256 of the six non-volatile fields joined by the
// ASCII unit separator, which never appears in feed text. See [Fingerprint].
//
// # Lifecycle
//
// Stored records move OPEN_NEW -> OPEN_SEEN -> RESOLVED. The state is derived
// from the stored fields rather than persisted, and every move goes through
// [Transition]. A record older than the reinsertion window is resolved and a
// fresh record is inserted when the same fingerprint is observed again.
package domain
