// Package workspace models the on-disk installation root: replaceable
// application code plus the protected user-data and storage subtrees that
// must survive every update.
//
// Purging is an allow-list walk over the top-level entries: protected roots,
// operator-preserved entries and in-flight staging directories are kept,
// everything else is removed. Installation copies the fetched code tree back
// into the root without touching the protected subtrees.
package workspace
