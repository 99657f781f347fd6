// Package geocode resolves free-text street and cross-street descriptions to
// coordinates by fuzzy matching against an index of named street pairs that
// meet at a mapped junction.
//
// A query pair ("MAIN ST", "1ST AVE") is reduced to anchor tokens, the index
// is searched by substring for each anchor, and every candidate row is scored
// in both pairings with a [SimilarityFunc]. The best candidate is accepted
// when its score reaches the match threshold. Outcomes, including misses, are
// cached per unordered pair for the life of the process.
package geocode
